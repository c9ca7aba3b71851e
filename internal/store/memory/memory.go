package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

// Seed identifiers for dev/demo mode.
const (
	SeedBusinessID   = "demo-business"
	SeedUserID       = "demo-owner"
	SeedCustomerID   = "64f000000000000000000001"
	SeedSupplierID   = "64f000000000000000000002"
	SeedProductPenID = "64f000000000000000000101"
	SeedProductInkID = "64f000000000000000000102"
)

type Store struct {
	mu sync.RWMutex

	documents  map[string]domain.Document
	docOrder   []string
	products   map[string]domain.Product
	prodOrder  []string
	parties    map[string]domain.Party
	partyOrder []string

	transactions map[string]domain.Transaction
	txOrder      []string
	links        map[string]string

	counters  map[string]int64
	auditLogs []domain.AuditLog
}

func New() *Store {
	return &Store{
		documents:    make(map[string]domain.Document),
		products:     make(map[string]domain.Product),
		parties:      make(map[string]domain.Party),
		transactions: make(map[string]domain.Transaction),
		links:        make(map[string]string),
		counters:     make(map[string]int64),
		auditLogs:    make([]domain.AuditLog, 0, 128),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, p := range []domain.Party{
		{ID: SeedCustomerID, Kind: domain.PartyKindCustomer, Name: "Sharma Traders", Mobile: "9800000001", Address: "12 MG Road, Pune", GSTIN: "27ABCDE1234F1Z5"},
		{ID: SeedSupplierID, Kind: domain.PartyKindSupplier, Name: "Gupta Stationers", Mobile: "9800000002"},
	} {
		p.BusinessID = SeedBusinessID
		p.CreatedAt = now
		s.parties[p.ID] = p
		s.partyOrder = append(s.partyOrder, p.ID)
	}

	for _, p := range []domain.Product{
		{ID: SeedProductPenID, Name: "Gel Pen", Unit: "pcs", SalePrice: decimal.NewFromInt(10), TaxPercent: decimal.NewFromInt(18), CurrentStock: decimal.NewFromInt(500)},
		{ID: SeedProductInkID, Name: "Ink Bottle", Unit: "pcs", SalePrice: decimal.NewFromInt(45), TaxPercent: decimal.NewFromInt(12), CurrentStock: decimal.NewFromInt(120)},
	} {
		p.BusinessID = SeedBusinessID
		p.CreatedAt = now
		s.products[p.ID] = p
		s.prodOrder = append(s.prodOrder, p.ID)
	}

	return s
}

func (s *Store) CreateDocument(_ context.Context, doc domain.Document) (*domain.Document, error) {
	if doc.BusinessID == "" || !doc.Kind.Valid() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = xid.New()
	}
	if _, exists := s.documents[doc.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.documents[doc.ID] = cloneDocument(doc)
	s.docOrder = append(s.docOrder, doc.ID)

	created := cloneDocument(doc)
	return &created, nil
}

func (s *Store) GetDocument(_ context.Context, kind domain.DocumentKind, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok || doc.Kind != kind {
		return nil, store.ErrNotFound
	}
	found := cloneDocument(doc)
	return &found, nil
}

func (s *Store) UpdateDocument(_ context.Context, doc domain.Document) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.documents[doc.ID]
	if !ok || existing.Kind != doc.Kind || existing.BusinessID != doc.BusinessID {
		return nil, store.ErrNotFound
	}
	s.documents[doc.ID] = cloneDocument(doc)

	updated := cloneDocument(doc)
	return &updated, nil
}

func (s *Store) ListDocuments(_ context.Context, kind domain.DocumentKind, businessID string, includeDeleted bool) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, 32)
	for _, id := range s.docOrder {
		doc := s.documents[id]
		if doc.Kind != kind || doc.BusinessID != businessID {
			continue
		}
		if doc.IsDeleted && !includeDeleted {
			continue
		}
		result = append(result, cloneDocument(doc))
	}

	slices.SortStableFunc(result, func(a, b domain.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.BusinessID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New()
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	s.prodOrder = append(s.prodOrder, product.ID)

	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, businessID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok || product.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) FindProductByName(_ context.Context, businessID string, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.prodOrder {
		product := s.products[id]
		if product.BusinessID == businessID && product.Name == name {
			return &product, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context, businessID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.prodOrder))
	for _, id := range s.prodOrder {
		if product := s.products[id]; product.BusinessID == businessID {
			result = append(result, product)
		}
	}
	return result, nil
}

func (s *Store) AdjustStock(_ context.Context, businessID string, productID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok || product.BusinessID != businessID {
		return store.ErrNotFound
	}
	product.CurrentStock = product.CurrentStock.Add(delta)
	s.products[productID] = product
	return nil
}

func (s *Store) CreateParty(_ context.Context, party domain.Party) (*domain.Party, error) {
	if party.BusinessID == "" || strings.TrimSpace(party.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if party.ID == "" {
		party.ID = xid.New()
	}
	if _, exists := s.parties[party.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if party.CreatedAt.IsZero() {
		party.CreatedAt = time.Now().UTC()
	}
	s.parties[party.ID] = party
	s.partyOrder = append(s.partyOrder, party.ID)

	created := party
	return &created, nil
}

func (s *Store) GetParty(_ context.Context, businessID string, id string) (*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	party, ok := s.parties[id]
	if !ok || party.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	return &party, nil
}

func (s *Store) ListParties(_ context.Context, businessID string) ([]domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Party, 0, len(s.partyOrder))
	for _, id := range s.partyOrder {
		if party := s.parties[id]; party.BusinessID == businessID {
			result = append(result, party)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.Party) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

func (s *Store) CreateLinkedTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.BusinessID == "" || tx.PartyID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Linked != nil {
		key := linkKey(tx.BusinessID, tx.Linked.Source, tx.Linked.RefID)
		if _, exists := s.links[key]; exists {
			return nil, store.ErrDuplicateLink
		}
		s.links[key] = tx.ID
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	s.txOrder = append(s.txOrder, tx.ID)

	created := cloneTransaction(tx)
	return &created, nil
}

func (s *Store) FindLinkedTransaction(_ context.Context, businessID string, source string, refID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.links[linkKey(businessID, source, refID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneTransaction(s.transactions[id])
	return &found, nil
}

func (s *Store) ListTransactionsByRef(_ context.Context, businessID string, refID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 2)
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.BusinessID == businessID && tx.Linked != nil && tx.Linked.RefID == refID {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[tx.ID]
	if !ok || existing.BusinessID != tx.BusinessID {
		return nil, store.ErrNotFound
	}
	// the link is immutable once created
	tx.Linked = existing.Linked
	tx.CreatedAt = existing.CreatedAt
	s.transactions[tx.ID] = cloneTransaction(tx)

	updated := cloneTransaction(tx)
	return &updated, nil
}

func (s *Store) DeleteTransaction(_ context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok || tx.BusinessID != businessID {
		return store.ErrNotFound
	}
	if tx.Linked != nil {
		delete(s.links, linkKey(tx.BusinessID, tx.Linked.Source, tx.Linked.RefID))
	}
	delete(s.transactions, id)
	s.txOrder = slices.DeleteFunc(s.txOrder, func(v string) bool { return v == id })
	return nil
}

func (s *Store) ListPartyTransactions(_ context.Context, businessID string, partyID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 16)
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.BusinessID == businessID && tx.PartyID == partyID {
			result = append(result, cloneTransaction(tx))
		}
	}
	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	return result, nil
}

func (s *Store) IncrementCounter(_ context.Context, businessID string, prefix string) (int64, error) {
	if businessID == "" || prefix == "" {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := businessID + "/" + prefix
	s.counters[key]++
	return s.counters[key], nil
}

func (s *Store) GetCounter(_ context.Context, businessID string, prefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters[businessID+"/"+prefix], nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, businessID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.BusinessID != businessID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func linkKey(businessID string, source string, refID string) string {
	return businessID + "|" + source + "|" + refID
}

func cloneDocument(src domain.Document) domain.Document {
	dup := src
	dup.Items = slices.Clone(src.Items)
	dup.AdditionalCharges = slices.Clone(src.AdditionalCharges)
	if src.SelectedParty != nil {
		party := *src.SelectedParty
		dup.SelectedParty = &party
	}
	return dup
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dup := src
	if src.Linked != nil {
		link := *src.Linked
		dup.Linked = &link
	}
	return dup
}
