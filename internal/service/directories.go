package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

func (s *Service) CreateParty(ctx context.Context, user domain.Actor, req domain.PartyCreateRequest) (domain.Party, error) {
	if err := requireUser(user); err != nil {
		return domain.Party{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.GSTIN = strings.ToUpper(strings.TrimSpace(req.GSTIN))
	if err := s.validateStruct(req); err != nil {
		return domain.Party{}, err
	}
	if req.Kind == "" {
		req.Kind = domain.PartyKindCustomer
	}

	created, err := s.repo.CreateParty(ctx, domain.Party{
		ID:         xid.New(),
		BusinessID: user.BusinessID,
		Kind:       req.Kind,
		Name:       req.Name,
		Mobile:     strings.TrimSpace(req.Mobile),
		Address:    strings.TrimSpace(req.Address),
		GSTIN:      req.GSTIN,
		Balance:    req.Balance,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.Party{}, err
	}

	s.logAudit(ctx, user, "party_create", "party", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListParties(ctx context.Context, user domain.Actor) ([]domain.Party, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return s.repo.ListParties(ctx, user.BusinessID)
}

func (s *Service) GetParty(ctx context.Context, user domain.Actor, id string) (domain.Party, error) {
	if err := requireUser(user); err != nil {
		return domain.Party{}, err
	}
	if !xid.Valid(id) {
		return domain.Party{}, ErrInvalidID
	}

	party, err := s.repo.GetParty(ctx, user.BusinessID, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Party{}, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return domain.Party{}, err
	}
	return *party, nil
}

// ListPartyTransactions returns the ledger of one party, newest first.
func (s *Service) ListPartyTransactions(ctx context.Context, user domain.Actor, partyID string) ([]domain.Transaction, error) {
	if _, err := s.GetParty(ctx, user, partyID); err != nil {
		return nil, err
	}
	return s.repo.ListPartyTransactions(ctx, user.BusinessID, partyID)
}

func (s *Service) CreateProduct(ctx context.Context, user domain.Actor, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireUser(user); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:           xid.New(),
		BusinessID:   user.BusinessID,
		Name:         req.Name,
		Unit:         strings.TrimSpace(req.Unit),
		SalePrice:    req.SalePrice,
		TaxPercent:   req.TaxPercent,
		CurrentStock: req.OpeningStock,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, user, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,stock=%s", created.Name, created.CurrentStock.String()))
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context, user domain.Actor) ([]domain.Product, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, user.BusinessID)
}

func (s *Service) GetProduct(ctx context.Context, user domain.Actor, id string) (domain.Product, error) {
	if err := requireUser(user); err != nil {
		return domain.Product{}, err
	}
	if !xid.Valid(id) {
		return domain.Product{}, ErrInvalidID
	}

	product, err := s.repo.GetProduct(ctx, user.BusinessID, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}
