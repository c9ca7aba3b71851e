package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

// Collection name constants.
const (
	colDocuments    = "sales_documents"
	colProducts     = "products"
	colParties      = "parties"
	colTransactions = "party_transactions"
	colCounters     = "invoice_counters"
	colAuditLogs    = "audit_logs"
)

// compile-time interface check
var _ store.Repository = (*Store)(nil)

// Store implements store.Repository on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and pings the primary before returning.
func New(ctx context.Context, uri string, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ==================== Documents ====================

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if doc.BusinessID == "" || !doc.Kind.Valid() {
		return nil, store.ErrInvalidInput
	}
	if doc.ID == "" {
		doc.ID = xid.New()
	}

	m := toDocumentModel(doc)
	if _, err := s.col(colDocuments).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, fmt.Errorf("mongo: create document: %w", err)
	}
	return fromDocumentModel(m), nil
}

func (s *Store) GetDocument(ctx context.Context, kind domain.DocumentKind, id string) (*domain.Document, error) {
	var m documentModel
	err := s.col(colDocuments).FindOne(ctx, bson.M{"_id": id, "kind": string(kind)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: get document: %w", err)
	}
	return fromDocumentModel(&m), nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	m := toDocumentModel(doc)
	res, err := s.col(colDocuments).ReplaceOne(ctx, bson.M{
		"_id":         doc.ID,
		"kind":        string(doc.Kind),
		"business_id": doc.BusinessID,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("mongo: update document: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}
	return fromDocumentModel(m), nil
}

func (s *Store) ListDocuments(ctx context.Context, kind domain.DocumentKind, businessID string, includeDeleted bool) ([]domain.Document, error) {
	filter := bson.M{"business_id": businessID, "kind": string(kind)}
	if !includeDeleted {
		filter["is_deleted"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cur, err := s.col(colDocuments).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list documents: %w", err)
	}
	var models []documentModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(models))
	for i := range models {
		docs = append(docs, *fromDocumentModel(&models[i]))
	}
	return docs, nil
}

// ==================== Products ====================

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.BusinessID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now()
	}

	m := toProductModel(product)
	if _, err := s.col(colProducts).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, fmt.Errorf("mongo: create product: %w", err)
	}
	return fromProductModel(m), nil
}

func (s *Store) GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error) {
	var m productModel
	err := s.col(colProducts).FindOne(ctx, bson.M{"_id": id, "business_id": businessID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: get product: %w", err)
	}
	return fromProductModel(&m), nil
}

func (s *Store) FindProductByName(ctx context.Context, businessID string, name string) (*domain.Product, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var m productModel
	err := s.col(colProducts).FindOne(ctx, bson.M{"business_id": businessID, "name": name}, opts).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find product by name: %w", err)
	}
	return fromProductModel(&m), nil
}

func (s *Store) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.col(colProducts).Find(ctx, bson.M{"business_id": businessID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list products: %w", err)
	}
	var models []productModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list products: %w", err)
	}

	products := make([]domain.Product, 0, len(models))
	for i := range models {
		products = append(products, *fromProductModel(&models[i]))
	}
	return products, nil
}

// AdjustStock applies delta with $inc so concurrent adjustments never lose
// an update.
func (s *Store) AdjustStock(ctx context.Context, businessID string, productID string, delta decimal.Decimal) error {
	res, err := s.col(colProducts).UpdateOne(ctx,
		bson.M{"_id": productID, "business_id": businessID},
		bson.M{"$inc": bson.M{"current_stock": toDecimal128(delta)}},
	)
	if err != nil {
		return fmt.Errorf("mongo: adjust stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==================== Parties ====================

func (s *Store) CreateParty(ctx context.Context, party domain.Party) (*domain.Party, error) {
	if party.BusinessID == "" || party.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if party.ID == "" {
		party.ID = xid.New()
	}
	if party.CreatedAt.IsZero() {
		party.CreatedAt = now()
	}

	m := toPartyModel(party)
	if _, err := s.col(colParties).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, fmt.Errorf("mongo: create party: %w", err)
	}
	return fromPartyModel(m), nil
}

func (s *Store) GetParty(ctx context.Context, businessID string, id string) (*domain.Party, error) {
	var m partyModel
	err := s.col(colParties).FindOne(ctx, bson.M{"_id": id, "business_id": businessID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: get party: %w", err)
	}
	return fromPartyModel(&m), nil
}

func (s *Store) ListParties(ctx context.Context, businessID string) ([]domain.Party, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})

	cur, err := s.col(colParties).Find(ctx, bson.M{"business_id": businessID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list parties: %w", err)
	}
	var models []partyModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list parties: %w", err)
	}

	parties := make([]domain.Party, 0, len(models))
	for i := range models {
		parties = append(parties, *fromPartyModel(&models[i]))
	}
	return parties, nil
}

// ==================== Ledger ====================

func (s *Store) CreateLinkedTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.BusinessID == "" || tx.PartyID == "" {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now()
	}

	m := toTransactionModel(tx)
	if _, err := s.col(colTransactions).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicateLink
		}
		return nil, fmt.Errorf("mongo: create transaction: %w", err)
	}
	return fromTransactionModel(m), nil
}

func (s *Store) FindLinkedTransaction(ctx context.Context, businessID string, source string, refID string) (*domain.Transaction, error) {
	var m transactionModel
	err := s.col(colTransactions).FindOne(ctx, bson.M{
		"business_id":   businessID,
		"linked.source": source,
		"linked.ref_id": refID,
	}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find linked transaction: %w", err)
	}
	return fromTransactionModel(&m), nil
}

func (s *Store) ListTransactionsByRef(ctx context.Context, businessID string, refID string) ([]domain.Transaction, error) {
	return s.findTransactions(ctx,
		bson.M{"business_id": businessID, "linked.ref_id": refID},
		bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	)
}

func (s *Store) ListPartyTransactions(ctx context.Context, businessID string, partyID string) ([]domain.Transaction, error) {
	return s.findTransactions(ctx,
		bson.M{"business_id": businessID, "party_id": partyID},
		bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}},
	)
}

func (s *Store) findTransactions(ctx context.Context, filter bson.M, sort bson.D) ([]domain.Transaction, error) {
	cur, err := s.col(colTransactions).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("mongo: list transactions: %w", err)
	}
	var models []transactionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(models))
	for i := range models {
		txs = append(txs, *fromTransactionModel(&models[i]))
	}
	return txs, nil
}

// UpdateTransaction rewrites the mutable fields. The link and creation
// metadata are left as stored.
func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m transactionModel
	err := s.col(colTransactions).FindOneAndUpdate(ctx,
		bson.M{"_id": tx.ID, "business_id": tx.BusinessID},
		bson.M{"$set": bson.M{
			"party_id":    tx.PartyID,
			"amount":      toDecimal128(tx.Amount),
			"type":        tx.Type,
			"description": tx.Description,
			"date":        tx.Date.UTC(),
		}},
		opts,
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: update transaction: %w", err)
	}
	return fromTransactionModel(&m), nil
}

func (s *Store) DeleteTransaction(ctx context.Context, businessID string, id string) error {
	res, err := s.col(colTransactions).DeleteOne(ctx, bson.M{"_id": id, "business_id": businessID})
	if err != nil {
		return fmt.Errorf("mongo: delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==================== Counters ====================

// IncrementCounter upserts the (business, prefix) row and returns the new
// sequence in one round trip.
func (s *Store) IncrementCounter(ctx context.Context, businessID string, prefix string) (int64, error) {
	if businessID == "" || prefix == "" {
		return 0, store.ErrInvalidInput
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m counterModel
	err := s.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"business_id": businessID, "prefix": prefix},
		bson.M{
			"$inc": bson.M{"seq": int64(1)},
			"$set": bson.M{"updated_at": now()},
		},
		opts,
	).Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("mongo: increment counter: %w", err)
	}
	return m.Seq, nil
}

func (s *Store) GetCounter(ctx context.Context, businessID string, prefix string) (int64, error) {
	var m counterModel
	err := s.col(colCounters).FindOne(ctx, bson.M{"business_id": businessID, "prefix": prefix}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("mongo: get counter: %w", err)
	}
	return m.Seq, nil
}

// ==================== Audit ====================

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	if _, err := s.col(colAuditLogs).InsertOne(ctx, toAuditLogModel(entry)); err != nil {
		return fmt.Errorf("mongo: create audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, businessID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.col(colAuditLogs).Find(ctx, bson.M{"business_id": businessID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list audit logs: %w", err)
	}
	var models []auditLogModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list audit logs: %w", err)
	}

	logs := make([]domain.AuditLog, 0, len(models))
	for i := range models {
		logs = append(logs, fromAuditLogModel(&models[i]))
	}
	return logs, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colDocuments: {
			{
				Keys:    bson.D{{Key: "business_id", Value: 1}, {Key: "prefix", Value: 1}, {Key: "invoice_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colProducts: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "name", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colParties: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "name", Value: 1}}},
		},
		colTransactions: {
			{
				Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "linked.source", Value: 1}, {Key: "linked.ref_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"linked.ref_id": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "party_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		colCounters: {
			{
				Keys:    bson.D{{Key: "business_id", Value: 1}, {Key: "prefix", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAuditLogs: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
