package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates the tables and indexes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const documentColumns = `
	id, business_id, kind, invoice_number, invoice_no, prefix, invoice_date,
	party_id, selected_party, payment_status, items, additional_charges,
	discount_option, discount_amount, manual_adjustment, adjustment_type, auto_round_off,
	total_amount, balance_amount, amount_received, amount_refunded,
	original_sale_id, notes, is_deleted, created_by, updated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc                           domain.Document
		kind                          string
		partyRaw, itemsRaw, chargeRaw []byte
	)
	if err := row.Scan(
		&doc.ID, &doc.BusinessID, &kind, &doc.InvoiceNumber, &doc.InvoiceNo, &doc.Prefix, &doc.InvoiceDate,
		&doc.PartyID, &partyRaw, &doc.PaymentStatus, &itemsRaw, &chargeRaw,
		&doc.DiscountOption, &doc.DiscountAmount, &doc.ManualAdjustment, &doc.AdjustmentType, &doc.AutoRoundOff,
		&doc.TotalAmount, &doc.BalanceAmount, &doc.AmountReceived, &doc.AmountRefunded,
		&doc.OriginalSaleID, &doc.Notes, &doc.IsDeleted, &doc.CreatedBy, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Kind = domain.DocumentKind(kind)

	if len(partyRaw) > 0 && string(partyRaw) != "null" {
		var view domain.PartyView
		if err := json.Unmarshal(partyRaw, &view); err != nil {
			return nil, fmt.Errorf("postgres: decode selected_party: %w", err)
		}
		doc.SelectedParty = &view
	}
	if err := json.Unmarshal(itemsRaw, &doc.Items); err != nil {
		return nil, fmt.Errorf("postgres: decode items: %w", err)
	}
	if err := json.Unmarshal(chargeRaw, &doc.AdditionalCharges); err != nil {
		return nil, fmt.Errorf("postgres: decode additional_charges: %w", err)
	}
	return &doc, nil
}

func documentJSON(doc domain.Document) (party any, items string, charges string, err error) {
	if doc.SelectedParty != nil {
		raw, err := json.Marshal(doc.SelectedParty)
		if err != nil {
			return nil, "", "", err
		}
		party = string(raw)
	}

	lines := doc.Items
	if lines == nil {
		lines = []domain.LineItem{}
	}
	rawItems, err := json.Marshal(lines)
	if err != nil {
		return nil, "", "", err
	}

	extra := doc.AdditionalCharges
	if extra == nil {
		extra = []domain.AdditionalCharge{}
	}
	rawCharges, err := json.Marshal(extra)
	if err != nil {
		return nil, "", "", err
	}
	return party, string(rawItems), string(rawCharges), nil
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if doc.BusinessID == "" || !doc.Kind.Valid() {
		return nil, store.ErrInvalidInput
	}
	if doc.ID == "" {
		doc.ID = xid.New()
	}
	party, items, charges, err := documentJSON(doc)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sales_documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11::jsonb, $12::jsonb,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		RETURNING `+documentColumns,
		doc.ID, doc.BusinessID, string(doc.Kind), doc.InvoiceNumber, doc.InvoiceNo, doc.Prefix, doc.InvoiceDate,
		doc.PartyID, party, doc.PaymentStatus, items, charges,
		doc.DiscountOption, doc.DiscountAmount, doc.ManualAdjustment, doc.AdjustmentType, doc.AutoRoundOff,
		doc.TotalAmount, doc.BalanceAmount, doc.AmountReceived, doc.AmountRefunded,
		doc.OriginalSaleID, doc.Notes, doc.IsDeleted, doc.CreatedBy, doc.UpdatedBy, doc.CreatedAt, doc.UpdatedAt,
	)
	created, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetDocument(ctx context.Context, kind domain.DocumentKind, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM sales_documents
		WHERE id = $1 AND kind = $2
	`, id, string(kind))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	party, items, charges, err := documentJSON(doc)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE sales_documents SET
			invoice_date = $4,
			party_id = $5,
			selected_party = $6::jsonb,
			payment_status = $7,
			items = $8::jsonb,
			additional_charges = $9::jsonb,
			discount_option = $10,
			discount_amount = $11,
			manual_adjustment = $12,
			adjustment_type = $13,
			auto_round_off = $14,
			total_amount = $15,
			balance_amount = $16,
			amount_received = $17,
			amount_refunded = $18,
			original_sale_id = $19,
			notes = $20,
			is_deleted = $21,
			updated_by = $22,
			updated_at = $23
		WHERE id = $1 AND kind = $2 AND business_id = $3
		RETURNING `+documentColumns,
		doc.ID, string(doc.Kind), doc.BusinessID,
		doc.InvoiceDate, doc.PartyID, party, doc.PaymentStatus, items, charges,
		doc.DiscountOption, doc.DiscountAmount, doc.ManualAdjustment, doc.AdjustmentType, doc.AutoRoundOff,
		doc.TotalAmount, doc.BalanceAmount, doc.AmountReceived, doc.AmountRefunded,
		doc.OriginalSaleID, doc.Notes, doc.IsDeleted, doc.UpdatedBy, doc.UpdatedAt,
	)
	updated, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListDocuments(ctx context.Context, kind domain.DocumentKind, businessID string, includeDeleted bool) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM sales_documents
		WHERE business_id = $1 AND kind = $2 AND ($3::boolean OR is_deleted = false)
		ORDER BY created_at DESC, id DESC
	`, businessID, string(kind), includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, 32)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

const productColumns = `id, business_id, name, unit, sale_price, tax_percent, current_stock, created_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Unit, &p.SalePrice, &p.TaxPercent, &p.CurrentStock, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.BusinessID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		product.ID, product.BusinessID, product.Name, product.Unit,
		product.SalePrice, product.TaxPercent, product.CurrentStock, product.CreatedAt,
	)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE business_id = $1 AND id = $2
	`, businessID, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return product, err
}

func (s *Store) FindProductByName(ctx context.Context, businessID string, name string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE business_id = $1 AND name = $2
		ORDER BY created_at, id
		LIMIT 1
	`, businessID, name)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return product, err
}

func (s *Store) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE business_id = $1 ORDER BY created_at, id
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) AdjustStock(ctx context.Context, businessID string, productID string, delta decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET current_stock = current_stock + $3
		WHERE business_id = $1 AND id = $2
	`, businessID, productID, delta)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const partyColumns = `id, business_id, kind, name, mobile, address, gstin, balance, created_at`

func scanParty(row rowScanner) (*domain.Party, error) {
	var p domain.Party
	if err := row.Scan(&p.ID, &p.BusinessID, &p.Kind, &p.Name, &p.Mobile, &p.Address, &p.GSTIN, &p.Balance, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateParty(ctx context.Context, party domain.Party) (*domain.Party, error) {
	if party.BusinessID == "" || party.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if party.ID == "" {
		party.ID = xid.New()
	}
	if party.CreatedAt.IsZero() {
		party.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+partyColumns,
		party.ID, party.BusinessID, party.Kind, party.Name, party.Mobile, party.Address, party.GSTIN, party.Balance, party.CreatedAt,
	)
	created, err := scanParty(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetParty(ctx context.Context, businessID string, id string) (*domain.Party, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+partyColumns+` FROM parties WHERE business_id = $1 AND id = $2
	`, businessID, id)
	party, err := scanParty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return party, err
}

func (s *Store) ListParties(ctx context.Context, businessID string) ([]domain.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+partyColumns+` FROM parties WHERE business_id = $1 ORDER BY lower(name), created_at
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make([]domain.Party, 0, 64)
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

const transactionColumns = `id, business_id, party_id, amount, type, description, date, link_source, link_ref_id, created_by, created_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx            domain.Transaction
		source, refID sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.BusinessID, &tx.PartyID, &tx.Amount, &tx.Type, &tx.Description, &tx.Date,
		&source, &refID, &tx.CreatedBy, &tx.CreatedAt); err != nil {
		return nil, err
	}
	if refID.Valid {
		tx.Linked = &domain.TransactionLink{Source: source.String, RefID: refID.String}
	}
	return &tx, nil
}

func (s *Store) CreateLinkedTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.BusinessID == "" || tx.PartyID == "" {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	var source, refID string
	if tx.Linked != nil {
		source, refID = tx.Linked.Source, tx.Linked.RefID
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO party_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+transactionColumns,
		tx.ID, tx.BusinessID, tx.PartyID, tx.Amount, tx.Type, tx.Description, tx.Date,
		nullIfEmpty(source), nullIfEmpty(refID), tx.CreatedBy, tx.CreatedAt,
	)
	created, err := scanTransaction(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateLink
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) FindLinkedTransaction(ctx context.Context, businessID string, source string, refID string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM party_transactions
		WHERE business_id = $1 AND link_source = $2 AND link_ref_id = $3
	`, businessID, source, refID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return tx, err
}

func (s *Store) ListTransactionsByRef(ctx context.Context, businessID string, refID string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM party_transactions
		WHERE business_id = $1 AND link_ref_id = $2
		ORDER BY created_at, id
	`, businessID, refID)
}

func (s *Store) ListPartyTransactions(ctx context.Context, businessID string, partyID string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM party_transactions
		WHERE business_id = $1 AND party_id = $2
		ORDER BY date DESC, created_at DESC
	`, businessID, partyID)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 16)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE party_transactions
		SET party_id = $3, amount = $4, type = $5, description = $6, date = $7
		WHERE business_id = $1 AND id = $2
		RETURNING `+transactionColumns,
		tx.BusinessID, tx.ID, tx.PartyID, tx.Amount, tx.Type, tx.Description, tx.Date,
	)
	updated, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return updated, err
}

func (s *Store) DeleteTransaction(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM party_transactions WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementCounter(ctx context.Context, businessID string, prefix string) (int64, error) {
	if businessID == "" || prefix == "" {
		return 0, store.ErrInvalidInput
	}

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invoice_counters (business_id, prefix, seq, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (business_id, prefix)
		DO UPDATE SET seq = invoice_counters.seq + 1, updated_at = now()
		RETURNING seq
	`, businessID, prefix).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) GetCounter(ctx context.Context, businessID string, prefix string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM invoice_counters WHERE business_id = $1 AND prefix = $2
	`, businessID, prefix).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, business_id, user_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.BusinessID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, businessID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, user_id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE business_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BusinessID, &entry.UserID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
