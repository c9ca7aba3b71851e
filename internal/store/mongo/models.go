package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bahikhata/backend/internal/domain"
)

func toDecimal128(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v bson.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ==================== Document models ====================

type partyViewModel struct {
	ID      string          `bson:"id"`
	Name    string          `bson:"name"`
	Mobile  string          `bson:"mobile,omitempty"`
	Address string          `bson:"address,omitempty"`
	GSTIN   string          `bson:"gstin,omitempty"`
	Balance bson.Decimal128 `bson:"balance"`
}

type lineItemModel struct {
	ProductID       string          `bson:"product_id,omitempty"`
	Name            string          `bson:"name"`
	Unit            string          `bson:"unit,omitempty"`
	Qty             bson.Decimal128 `bson:"qty"`
	Rate            bson.Decimal128 `bson:"rate"`
	DiscountPercent bson.Decimal128 `bson:"discount_percent"`
	DiscountAmount  bson.Decimal128 `bson:"discount_amount"`
	TaxPercent      bson.Decimal128 `bson:"tax_percent"`
	CGSTRate        bson.Decimal128 `bson:"cgst_rate"`
	SGSTRate        bson.Decimal128 `bson:"sgst_rate"`
	CGSTAmount      bson.Decimal128 `bson:"cgst_amount"`
	SGSTAmount      bson.Decimal128 `bson:"sgst_amount"`
}

type chargeModel struct {
	Name   string          `bson:"name"`
	Amount bson.Decimal128 `bson:"amount"`
}

type documentModel struct {
	ID                string          `bson:"_id"`
	BusinessID        string          `bson:"business_id"`
	Kind              string          `bson:"kind"`
	InvoiceNumber     int64           `bson:"invoice_number"`
	InvoiceNo         string          `bson:"invoice_no"`
	Prefix            string          `bson:"prefix"`
	InvoiceDate       time.Time       `bson:"invoice_date"`
	PartyID           string          `bson:"party_id,omitempty"`
	SelectedParty     *partyViewModel `bson:"selected_party,omitempty"`
	PaymentStatus     string          `bson:"payment_status"`
	Items             []lineItemModel `bson:"items"`
	AdditionalCharges []chargeModel   `bson:"additional_charges"`
	DiscountOption    string          `bson:"discount_option,omitempty"`
	DiscountAmount    bson.Decimal128 `bson:"discount_amount"`
	ManualAdjustment  bson.Decimal128 `bson:"manual_adjustment"`
	AdjustmentType    string          `bson:"adjustment_type,omitempty"`
	AutoRoundOff      bool            `bson:"auto_round_off"`
	TotalAmount       bson.Decimal128 `bson:"total_amount"`
	BalanceAmount     bson.Decimal128 `bson:"balance_amount"`
	AmountReceived    bson.Decimal128 `bson:"amount_received"`
	AmountRefunded    bson.Decimal128 `bson:"amount_refunded"`
	OriginalSaleID    string          `bson:"original_sale_id,omitempty"`
	Notes             string          `bson:"notes,omitempty"`
	IsDeleted         bool            `bson:"is_deleted"`
	CreatedBy         string          `bson:"created_by"`
	UpdatedBy         string          `bson:"updated_by"`
	CreatedAt         time.Time       `bson:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at"`
}

func toDocumentModel(doc domain.Document) *documentModel {
	m := &documentModel{
		ID:                doc.ID,
		BusinessID:        doc.BusinessID,
		Kind:              string(doc.Kind),
		InvoiceNumber:     doc.InvoiceNumber,
		InvoiceNo:         doc.InvoiceNo,
		Prefix:            doc.Prefix,
		InvoiceDate:       doc.InvoiceDate.UTC(),
		PartyID:           doc.PartyID,
		PaymentStatus:     doc.PaymentStatus,
		Items:             make([]lineItemModel, 0, len(doc.Items)),
		AdditionalCharges: make([]chargeModel, 0, len(doc.AdditionalCharges)),
		DiscountOption:    doc.DiscountOption,
		DiscountAmount:    toDecimal128(doc.DiscountAmount),
		ManualAdjustment:  toDecimal128(doc.ManualAdjustment),
		AdjustmentType:    doc.AdjustmentType,
		AutoRoundOff:      doc.AutoRoundOff,
		TotalAmount:       toDecimal128(doc.TotalAmount),
		BalanceAmount:     toDecimal128(doc.BalanceAmount),
		AmountReceived:    toDecimal128(doc.AmountReceived),
		AmountRefunded:    toDecimal128(doc.AmountRefunded),
		OriginalSaleID:    doc.OriginalSaleID,
		Notes:             doc.Notes,
		IsDeleted:         doc.IsDeleted,
		CreatedBy:         doc.CreatedBy,
		UpdatedBy:         doc.UpdatedBy,
		CreatedAt:         doc.CreatedAt.UTC(),
		UpdatedAt:         doc.UpdatedAt.UTC(),
	}
	if doc.SelectedParty != nil {
		p := doc.SelectedParty
		m.SelectedParty = &partyViewModel{
			ID:      p.ID,
			Name:    p.Name,
			Mobile:  p.Mobile,
			Address: p.Address,
			GSTIN:   p.GSTIN,
			Balance: toDecimal128(p.Balance),
		}
	}
	for _, it := range doc.Items {
		m.Items = append(m.Items, lineItemModel{
			ProductID:       it.ProductID,
			Name:            it.Name,
			Unit:            it.Unit,
			Qty:             toDecimal128(it.Qty),
			Rate:            toDecimal128(it.Rate),
			DiscountPercent: toDecimal128(it.DiscountPercent),
			DiscountAmount:  toDecimal128(it.DiscountAmount),
			TaxPercent:      toDecimal128(it.TaxPercent),
			CGSTRate:        toDecimal128(it.CGSTRate),
			SGSTRate:        toDecimal128(it.SGSTRate),
			CGSTAmount:      toDecimal128(it.CGSTAmount),
			SGSTAmount:      toDecimal128(it.SGSTAmount),
		})
	}
	for _, c := range doc.AdditionalCharges {
		m.AdditionalCharges = append(m.AdditionalCharges, chargeModel{
			Name:   c.Name,
			Amount: toDecimal128(c.Amount),
		})
	}
	return m
}

func fromDocumentModel(m *documentModel) *domain.Document {
	doc := &domain.Document{
		ID:                m.ID,
		BusinessID:        m.BusinessID,
		Kind:              domain.DocumentKind(m.Kind),
		InvoiceNumber:     m.InvoiceNumber,
		InvoiceNo:         m.InvoiceNo,
		Prefix:            m.Prefix,
		InvoiceDate:       m.InvoiceDate.UTC(),
		PartyID:           m.PartyID,
		PaymentStatus:     m.PaymentStatus,
		Items:             make([]domain.LineItem, 0, len(m.Items)),
		AdditionalCharges: make([]domain.AdditionalCharge, 0, len(m.AdditionalCharges)),
		DiscountOption:    m.DiscountOption,
		DiscountAmount:    fromDecimal128(m.DiscountAmount),
		ManualAdjustment:  fromDecimal128(m.ManualAdjustment),
		AdjustmentType:    m.AdjustmentType,
		AutoRoundOff:      m.AutoRoundOff,
		TotalAmount:       fromDecimal128(m.TotalAmount),
		BalanceAmount:     fromDecimal128(m.BalanceAmount),
		AmountReceived:    fromDecimal128(m.AmountReceived),
		AmountRefunded:    fromDecimal128(m.AmountRefunded),
		OriginalSaleID:    m.OriginalSaleID,
		Notes:             m.Notes,
		IsDeleted:         m.IsDeleted,
		CreatedBy:         m.CreatedBy,
		UpdatedBy:         m.UpdatedBy,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
	if p := m.SelectedParty; p != nil {
		doc.SelectedParty = &domain.PartyView{
			ID:      p.ID,
			Name:    p.Name,
			Mobile:  p.Mobile,
			Address: p.Address,
			GSTIN:   p.GSTIN,
			Balance: fromDecimal128(p.Balance),
		}
	}
	for _, it := range m.Items {
		doc.Items = append(doc.Items, domain.LineItem{
			ProductID:       it.ProductID,
			Name:            it.Name,
			Unit:            it.Unit,
			Qty:             fromDecimal128(it.Qty),
			Rate:            fromDecimal128(it.Rate),
			DiscountPercent: fromDecimal128(it.DiscountPercent),
			DiscountAmount:  fromDecimal128(it.DiscountAmount),
			TaxPercent:      fromDecimal128(it.TaxPercent),
			CGSTRate:        fromDecimal128(it.CGSTRate),
			SGSTRate:        fromDecimal128(it.SGSTRate),
			CGSTAmount:      fromDecimal128(it.CGSTAmount),
			SGSTAmount:      fromDecimal128(it.SGSTAmount),
		})
	}
	for _, c := range m.AdditionalCharges {
		doc.AdditionalCharges = append(doc.AdditionalCharges, domain.AdditionalCharge{
			Name:   c.Name,
			Amount: fromDecimal128(c.Amount),
		})
	}
	return doc
}

// ==================== Directory models ====================

type productModel struct {
	ID           string          `bson:"_id"`
	BusinessID   string          `bson:"business_id"`
	Name         string          `bson:"name"`
	Unit         string          `bson:"unit,omitempty"`
	SalePrice    bson.Decimal128 `bson:"sale_price"`
	TaxPercent   bson.Decimal128 `bson:"tax_percent"`
	CurrentStock bson.Decimal128 `bson:"current_stock"`
	CreatedAt    time.Time       `bson:"created_at"`
}

func toProductModel(p domain.Product) *productModel {
	return &productModel{
		ID:           p.ID,
		BusinessID:   p.BusinessID,
		Name:         p.Name,
		Unit:         p.Unit,
		SalePrice:    toDecimal128(p.SalePrice),
		TaxPercent:   toDecimal128(p.TaxPercent),
		CurrentStock: toDecimal128(p.CurrentStock),
		CreatedAt:    p.CreatedAt.UTC(),
	}
}

func fromProductModel(m *productModel) *domain.Product {
	return &domain.Product{
		ID:           m.ID,
		BusinessID:   m.BusinessID,
		Name:         m.Name,
		Unit:         m.Unit,
		SalePrice:    fromDecimal128(m.SalePrice),
		TaxPercent:   fromDecimal128(m.TaxPercent),
		CurrentStock: fromDecimal128(m.CurrentStock),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type partyModel struct {
	ID         string          `bson:"_id"`
	BusinessID string          `bson:"business_id"`
	Kind       string          `bson:"kind"`
	Name       string          `bson:"name"`
	Mobile     string          `bson:"mobile,omitempty"`
	Address    string          `bson:"address,omitempty"`
	GSTIN      string          `bson:"gstin,omitempty"`
	Balance    bson.Decimal128 `bson:"balance"`
	CreatedAt  time.Time       `bson:"created_at"`
}

func toPartyModel(p domain.Party) *partyModel {
	return &partyModel{
		ID:         p.ID,
		BusinessID: p.BusinessID,
		Kind:       p.Kind,
		Name:       p.Name,
		Mobile:     p.Mobile,
		Address:    p.Address,
		GSTIN:      p.GSTIN,
		Balance:    toDecimal128(p.Balance),
		CreatedAt:  p.CreatedAt.UTC(),
	}
}

func fromPartyModel(m *partyModel) *domain.Party {
	return &domain.Party{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		Kind:       m.Kind,
		Name:       m.Name,
		Mobile:     m.Mobile,
		Address:    m.Address,
		GSTIN:      m.GSTIN,
		Balance:    fromDecimal128(m.Balance),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

// ==================== Ledger models ====================

type linkModel struct {
	Source string `bson:"source"`
	RefID  string `bson:"ref_id"`
}

type transactionModel struct {
	ID          string          `bson:"_id"`
	BusinessID  string          `bson:"business_id"`
	PartyID     string          `bson:"party_id"`
	Amount      bson.Decimal128 `bson:"amount"`
	Type        string          `bson:"type"`
	Description string          `bson:"description"`
	Date        time.Time       `bson:"date"`
	Linked      *linkModel      `bson:"linked,omitempty"`
	CreatedBy   string          `bson:"created_by,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
}

func toTransactionModel(tx domain.Transaction) *transactionModel {
	m := &transactionModel{
		ID:          tx.ID,
		BusinessID:  tx.BusinessID,
		PartyID:     tx.PartyID,
		Amount:      toDecimal128(tx.Amount),
		Type:        tx.Type,
		Description: tx.Description,
		Date:        tx.Date.UTC(),
		CreatedBy:   tx.CreatedBy,
		CreatedAt:   tx.CreatedAt.UTC(),
	}
	if tx.Linked != nil {
		m.Linked = &linkModel{Source: tx.Linked.Source, RefID: tx.Linked.RefID}
	}
	return m
}

func fromTransactionModel(m *transactionModel) *domain.Transaction {
	tx := &domain.Transaction{
		ID:          m.ID,
		BusinessID:  m.BusinessID,
		PartyID:     m.PartyID,
		Amount:      fromDecimal128(m.Amount),
		Type:        m.Type,
		Description: m.Description,
		Date:        m.Date.UTC(),
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.Linked != nil {
		tx.Linked = &domain.TransactionLink{Source: m.Linked.Source, RefID: m.Linked.RefID}
	}
	return tx
}

// ==================== Counter & audit models ====================

type counterModel struct {
	BusinessID string    `bson:"business_id"`
	Prefix     string    `bson:"prefix"`
	Seq        int64     `bson:"seq"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type auditLogModel struct {
	ID         string    `bson:"_id"`
	BusinessID string    `bson:"business_id"`
	UserID     string    `bson:"user_id"`
	Action     string    `bson:"action"`
	EntityType string    `bson:"entity_type"`
	EntityID   string    `bson:"entity_id"`
	Detail     string    `bson:"detail,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func toAuditLogModel(e domain.AuditLog) *auditLogModel {
	return &auditLogModel{
		ID:         e.ID,
		BusinessID: e.BusinessID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

func fromAuditLogModel(m *auditLogModel) domain.AuditLog {
	return domain.AuditLog{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		UserID:     m.UserID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Detail:     m.Detail,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}
