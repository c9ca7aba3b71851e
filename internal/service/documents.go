package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/invoice"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/numbering"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

func (s *Service) CreateDocument(ctx context.Context, user domain.Actor, kind domain.DocumentKind, in domain.DocumentInput) (domain.Document, error) {
	if err := requireUser(user); err != nil {
		return domain.Document{}, err
	}
	if !kind.Valid() {
		return domain.Document{}, ErrInvalidInput
	}
	if err := s.checkInput(in); err != nil {
		return domain.Document{}, err
	}

	prefix, err := numbering.NormalizePrefix(in.Prefix, kind.DefaultPrefix())
	if err != nil {
		return domain.Document{}, &ValidationError{Err: ErrInvalidInput, Details: err.Error()}
	}
	party, err := s.resolveParty(ctx, user.BusinessID, in)
	if err != nil {
		return domain.Document{}, err
	}

	now := s.now()
	doc := domain.Document{
		ID:         xid.New(),
		BusinessID: user.BusinessID,
		Kind:       kind,
		Prefix:     prefix,
		CreatedBy:  user.UserID,
		CreatedAt:  now,
	}
	s.applyInput(ctx, &doc, in, party, user, now)
	if doc.InvoiceDate.IsZero() {
		doc.InvoiceDate = now
	}

	number, err := s.numbers.Allocate(ctx, user.BusinessID, prefix)
	if err != nil {
		logging.LogError(s.log, "documents", "CreateDocument", "invoice number allocation failed", logrus.Fields{
			"businessId": user.BusinessID,
			"prefix":     prefix,
		}, err)
		return domain.Document{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	doc.InvoiceNumber = number.Seq
	doc.InvoiceNo = number.Formatted

	applied := s.applyCreate(ctx, kind, user.BusinessID, doc.Items)

	created, err := s.repo.CreateDocument(ctx, doc)
	if err != nil {
		s.compensateStock(ctx, user.BusinessID, applied)
		return domain.Document{}, fmt.Errorf("persist %s: %w", kind, err)
	}

	s.linkLedger(ctx, *created)
	s.logAudit(ctx, user, string(kind)+"_create", string(kind), created.ID,
		fmt.Sprintf("invoice=%s,total=%s", created.InvoiceNo, created.TotalAmount.String()))

	return s.populate(ctx, *created), nil
}

func (s *Service) UpdateDocument(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string, in domain.DocumentInput) (domain.Document, error) {
	if err := requireUser(user); err != nil {
		return domain.Document{}, err
	}
	if !xid.Valid(id) {
		return domain.Document{}, ErrInvalidID
	}
	if err := s.checkInput(in); err != nil {
		return domain.Document{}, err
	}

	release, err := s.locker.Acquire(ctx, documentLockKey(kind, id))
	if err != nil {
		return domain.Document{}, err
	}
	defer release()

	existing, err := s.loadActive(ctx, user, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	party, err := s.resolveParty(ctx, user.BusinessID, in)
	if err != nil {
		return domain.Document{}, err
	}

	updated := *existing
	s.applyInput(ctx, &updated, in, party, user, s.now())

	applied := s.applyUpdate(ctx, kind, user.BusinessID, existing.Items, updated.Items)

	saved, err := s.repo.UpdateDocument(ctx, updated)
	if err != nil {
		s.compensateStock(ctx, user.BusinessID, applied)
		return domain.Document{}, fmt.Errorf("persist %s: %w", kind, err)
	}

	s.syncLedger(ctx, *saved)
	s.logAudit(ctx, user, string(kind)+"_update", string(kind), saved.ID,
		fmt.Sprintf("invoice=%s,total=%s", saved.InvoiceNo, saved.TotalAmount.String()))

	return s.populate(ctx, *saved), nil
}

func (s *Service) ListDocuments(ctx context.Context, user domain.Actor, kind domain.DocumentKind, opts domain.ListOptions) ([]domain.Document, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	docs, err := s.repo.ListDocuments(ctx, kind, user.BusinessID, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i] = s.populate(ctx, docs[i])
	}
	return docs, nil
}

func (s *Service) GetDocument(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string, opts domain.ListOptions) (domain.Document, error) {
	if err := requireUser(user); err != nil {
		return domain.Document{}, err
	}
	if !xid.Valid(id) {
		return domain.Document{}, ErrInvalidID
	}

	doc, err := s.loadOwned(ctx, user, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.IsDeleted && !opts.IncludeDeleted {
		return domain.Document{}, ErrNotFoundOrUnauthorized
	}
	return s.populate(ctx, *doc), nil
}

// NextInvoicePreview reports the number the next create under prefix would
// receive, using the kind's default prefix when empty. Nothing is reserved.
func (s *Service) NextInvoicePreview(ctx context.Context, user domain.Actor, kind domain.DocumentKind, prefix string) (domain.InvoicePreview, error) {
	if err := requireUser(user); err != nil {
		return domain.InvoicePreview{}, err
	}
	normalized, err := numbering.NormalizePrefix(prefix, kind.DefaultPrefix())
	if err != nil {
		return domain.InvoicePreview{}, &ValidationError{Err: ErrInvalidInput, Details: err.Error()}
	}

	next, err := s.numbers.Peek(ctx, user.BusinessID, normalized)
	if err != nil {
		return domain.InvoicePreview{}, err
	}
	return domain.InvoicePreview{InvoiceNumber: next.Seq, InvoiceNo: next.Formatted}, nil
}

// DocumentSummary recomputes a stored document for display. The persisted
// total takes precedence over the recomputed one.
func (s *Service) DocumentSummary(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string) (invoice.Result, error) {
	doc, err := s.GetDocument(ctx, user, kind, id, domain.ListOptions{IncludeDeleted: true})
	if err != nil {
		return invoice.Result{}, err
	}
	return invoice.Calculate(invoice.FromDocument(doc, true)), nil
}

func (s *Service) checkInput(in domain.DocumentInput) error {
	if err := s.validateStruct(in); err != nil {
		return err
	}
	return validatePaymentStatus(in.PaymentStatus)
}

func validatePaymentStatus(status string) error {
	switch status {
	case "", domain.PaymentStatusPaid, domain.PaymentStatusUnpaid, domain.PaymentStatusPartiallyPaid:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
}

func derivePaymentStatus(total decimal.Decimal, settled decimal.Decimal) string {
	switch {
	case !settled.IsPositive():
		return domain.PaymentStatusUnpaid
	case settled.GreaterThanOrEqual(total):
		return domain.PaymentStatusPaid
	default:
		return domain.PaymentStatusPartiallyPaid
	}
}

// applyInput copies the editable fields of in onto doc and recomputes its
// totals. Number, prefix and creation metadata are left alone.
func (s *Service) applyInput(ctx context.Context, doc *domain.Document, in domain.DocumentInput, party *domain.PartyView, user domain.Actor, now time.Time) {
	if in.InvoiceDate != nil && !in.InvoiceDate.IsZero() {
		doc.InvoiceDate = in.InvoiceDate.UTC()
	}
	doc.PartyID = ""
	doc.SelectedParty = nil
	if party != nil {
		doc.PartyID = party.ID
		doc.SelectedParty = party
	}

	doc.Items = s.normalizeItems(ctx, doc.BusinessID, in.Items)
	doc.AdditionalCharges = in.AdditionalCharges
	if doc.AdditionalCharges == nil {
		doc.AdditionalCharges = []domain.AdditionalCharge{}
	}
	doc.DiscountOption = in.DiscountOption
	doc.DiscountAmount = in.DiscountAmount
	doc.ManualAdjustment = in.ManualAdjustment
	doc.AdjustmentType = in.AdjustmentType
	doc.AutoRoundOff = in.AutoRoundOff
	doc.Notes = strings.TrimSpace(in.Notes)

	doc.AmountReceived = decimal.Zero
	doc.AmountRefunded = decimal.Zero
	doc.OriginalSaleID = ""
	if doc.Kind == domain.KindSaleReturn {
		doc.AmountRefunded = in.AmountRefunded
		doc.OriginalSaleID = strings.TrimSpace(in.OriginalSaleID)
	} else {
		doc.AmountReceived = in.AmountReceived
	}

	totals := invoice.Calculate(invoice.FromDocument(*doc, false))
	doc.TotalAmount = totals.FinalTotal
	doc.BalanceAmount = totals.Balance

	doc.PaymentStatus = in.PaymentStatus
	if doc.PaymentStatus == "" {
		doc.PaymentStatus = derivePaymentStatus(doc.TotalAmount, doc.SettledAmount())
	}

	doc.UpdatedBy = user.UserID
	doc.UpdatedAt = now
}

// resolveParty accepts partyId or selectedParty.id. An unknown party is not
// an error; the document is saved without one and no ledger entry is made.
func (s *Service) resolveParty(ctx context.Context, businessID string, in domain.DocumentInput) (*domain.PartyView, error) {
	id := strings.TrimSpace(in.PartyID)
	if id == "" && in.SelectedParty != nil {
		id = strings.TrimSpace(in.SelectedParty.ID)
	}
	if id == "" {
		return nil, nil
	}
	if !xid.Valid(id) {
		return nil, fmt.Errorf("%w: party %q", ErrInvalidID, id)
	}

	view, err := s.partyView(ctx, businessID, id)
	if err != nil {
		logging.LogWarn(s.log, "documents", "resolveParty", "party not resolved, saving without party", logrus.Fields{
			"businessId": businessID,
			"partyId":    id,
		}, err)
		return nil, nil
	}
	return view, nil
}

func (s *Service) partyView(ctx context.Context, businessID string, id string) (*domain.PartyView, error) {
	if cached, ok, err := s.partyCache.Get(ctx, businessID, id); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.LogWarn(s.log, "documents", "partyView", "party cache read failed", logrus.Fields{"partyId": id}, err)
	}

	party, err := s.repo.GetParty(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	view := party.View()
	if err := s.partyCache.Set(ctx, businessID, view, s.partyTTL); err != nil {
		logging.LogWarn(s.log, "documents", "partyView", "party cache write failed", logrus.Fields{"partyId": id}, err)
	}
	return &view, nil
}

// populate refreshes selectedParty from the party directory, keeping the
// stored snapshot when the party can no longer be read.
func (s *Service) populate(ctx context.Context, doc domain.Document) domain.Document {
	if doc.PartyID == "" {
		doc.SelectedParty = nil
		return doc
	}
	if view, err := s.partyView(ctx, doc.BusinessID, doc.PartyID); err == nil {
		doc.SelectedParty = view
	}
	return doc
}

// loadOwned fetches a document and hides documents of other businesses
// behind the same error as missing ones.
func (s *Service) loadOwned(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string) (*domain.Document, error) {
	doc, err := s.repo.GetDocument(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if doc.BusinessID != user.BusinessID {
		return nil, ErrNotFoundOrUnauthorized
	}
	return doc, nil
}

func (s *Service) loadActive(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string) (*domain.Document, error) {
	doc, err := s.loadOwned(ctx, user, kind, id)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, ErrNotFoundOrUnauthorized
	}
	return doc, nil
}

func documentLockKey(kind domain.DocumentKind, id string) string {
	return string(kind) + ":" + id
}
