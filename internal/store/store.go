package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicateLink = errors.New("linked transaction already exists")
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error)
	GetDocument(ctx context.Context, kind domain.DocumentKind, id string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error)
	ListDocuments(ctx context.Context, kind domain.DocumentKind, businessID string, includeDeleted bool) ([]domain.Document, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error)
	// FindProductByName is an exact, business-scoped match returning the
	// earliest created product when several share a name.
	FindProductByName(ctx context.Context, businessID string, name string) (*domain.Product, error)
	ListProducts(ctx context.Context, businessID string) ([]domain.Product, error)
	// AdjustStock adds delta to currentStock in one storage-side operation.
	AdjustStock(ctx context.Context, businessID string, productID string, delta decimal.Decimal) error
}

type PartyStore interface {
	CreateParty(ctx context.Context, party domain.Party) (*domain.Party, error)
	GetParty(ctx context.Context, businessID string, id string) (*domain.Party, error)
	ListParties(ctx context.Context, businessID string) ([]domain.Party, error)
}

type LedgerStore interface {
	// CreateLinkedTransaction returns ErrDuplicateLink when a transaction with
	// the same (business, source, refId) already exists.
	CreateLinkedTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	FindLinkedTransaction(ctx context.Context, businessID string, source string, refID string) (*domain.Transaction, error)
	ListTransactionsByRef(ctx context.Context, businessID string, refID string) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, businessID string, id string) error
	ListPartyTransactions(ctx context.Context, businessID string, partyID string) ([]domain.Transaction, error)
}

type CounterStore interface {
	IncrementCounter(ctx context.Context, businessID string, prefix string) (int64, error)
	// GetCounter returns 0 when no number was allocated yet.
	GetCounter(ctx context.Context, businessID string, prefix string) (int64, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, businessID string, limit int) ([]domain.AuditLog, error)
}

type Repository interface {
	DocumentStore
	ProductStore
	PartyStore
	LedgerStore
	CounterStore
	AuditStore
}
