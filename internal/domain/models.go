package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindSale       DocumentKind = "sale"
	KindSaleReturn DocumentKind = "sale_return"
)

// DefaultPrefix is the invoice prefix used when a document does not carry one.
func (k DocumentKind) DefaultPrefix() string {
	if k == KindSaleReturn {
		return "SR"
	}
	return "INV"
}

// StockSign is the direction a document moves stock on create.
func (k DocumentKind) StockSign() int64 {
	if k == KindSaleReturn {
		return 1
	}
	return -1
}

func (k DocumentKind) Valid() bool {
	return k == KindSale || k == KindSaleReturn
}

func (k DocumentKind) Label() string {
	if k == KindSaleReturn {
		return "Sale Return"
	}
	return "Sale"
}

const (
	PaymentStatusPaid          = "Paid"
	PaymentStatusUnpaid        = "Unpaid"
	PaymentStatusPartiallyPaid = "Partially Paid"
)

const (
	DiscountBeforeTax = "before-tax"
	DiscountAfterTax  = "after-tax"
)

const (
	AdjustmentAdd      = "add"
	AdjustmentSubtract = "subtract"
)

const (
	TxTypeGot  = "You Got"
	TxTypeGave = "You Gave"
)

// Link sources. The value and settlement transactions of one document use
// different sources so each (source, refId) pair is unique.
const (
	LinkSourceSale             = "sale"
	LinkSourceSalePayment      = "sale_payment"
	LinkSourceSaleReturn       = "sale_return"
	LinkSourceSaleReturnRefund = "sale_return_refund"
)

const (
	PartyKindCustomer = "customer"
	PartyKindSupplier = "supplier"
)

// Actor is the request-scoped user identity.
type Actor struct {
	UserID     string
	BusinessID string
}

type Party struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"businessId"`
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Mobile     string          `json:"mobile,omitempty"`
	Address    string          `json:"address,omitempty"`
	GSTIN      string          `json:"gstin,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// PartyView is the normalized party shape embedded in returned documents.
type PartyView struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Mobile  string          `json:"mobile,omitempty"`
	Address string          `json:"address,omitempty"`
	GSTIN   string          `json:"gstin,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

func (p Party) View() PartyView {
	return PartyView{
		ID:      p.ID,
		Name:    p.Name,
		Mobile:  p.Mobile,
		Address: p.Address,
		GSTIN:   p.GSTIN,
		Balance: p.Balance,
	}
}

type PartyCreateRequest struct {
	Kind    string          `json:"kind" validate:"omitempty,oneof=customer supplier"`
	Name    string          `json:"name" validate:"required,max=200"`
	Mobile  string          `json:"mobile" validate:"omitempty,max=20"`
	Address string          `json:"address" validate:"omitempty,max=500"`
	GSTIN   string          `json:"gstin" validate:"omitempty,len=15,alphanum"`
	Balance decimal.Decimal `json:"balance"`
}

type Product struct {
	ID           string          `json:"id"`
	BusinessID   string          `json:"businessId"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit,omitempty"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	TaxPercent   decimal.Decimal `json:"taxPercent"`
	CurrentStock decimal.Decimal `json:"currentStock"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Unit         string          `json:"unit" validate:"omitempty,max=20"`
	SalePrice    decimal.Decimal `json:"salePrice" validate:"gte=0"`
	TaxPercent   decimal.Decimal `json:"taxPercent" validate:"gte=0,lte=100"`
	OpeningStock decimal.Decimal `json:"openingStock"`
}

type LineItem struct {
	ProductID       string          `json:"productId,omitempty"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit,omitempty"`
	Qty             decimal.Decimal `json:"qty" validate:"gte=0"`
	Rate            decimal.Decimal `json:"rate" validate:"gte=0"`
	DiscountPercent decimal.Decimal `json:"discountPercent" validate:"gte=0,lte=100"`
	DiscountAmount  decimal.Decimal `json:"discountAmount" validate:"gte=0"`
	TaxPercent      decimal.Decimal `json:"taxPercent" validate:"gte=0,lte=100"`
	CGSTRate        decimal.Decimal `json:"cgstRate" validate:"gte=0"`
	SGSTRate        decimal.Decimal `json:"sgstRate" validate:"gte=0"`
	CGSTAmount      decimal.Decimal `json:"cgstAmount" validate:"gte=0"`
	SGSTAmount      decimal.Decimal `json:"sgstAmount" validate:"gte=0"`
}

type AdditionalCharge struct {
	Name   string          `json:"name" validate:"max=100"`
	Amount decimal.Decimal `json:"amount"`
}

// Document is a Sale or a SaleReturn. AmountReceived is used by sales and
// AmountRefunded by returns; the two are never merged.
type Document struct {
	ID                string             `json:"id"`
	BusinessID        string             `json:"businessId"`
	Kind              DocumentKind       `json:"kind"`
	InvoiceNumber     int64              `json:"invoiceNumber"`
	InvoiceNo         string             `json:"invoiceNo"`
	Prefix            string             `json:"prefix"`
	InvoiceDate       time.Time          `json:"invoiceDate"`
	PartyID           string             `json:"partyId,omitempty"`
	SelectedParty     *PartyView         `json:"selectedParty,omitempty"`
	PaymentStatus     string             `json:"paymentStatus"`
	Items             []LineItem         `json:"items"`
	AdditionalCharges []AdditionalCharge `json:"additionalCharges"`
	DiscountOption    string             `json:"discountOption,omitempty"`
	DiscountAmount    decimal.Decimal    `json:"discountAmount"`
	ManualAdjustment  decimal.Decimal    `json:"manualAdjustment"`
	AdjustmentType    string             `json:"adjustmentType,omitempty"`
	AutoRoundOff      bool               `json:"autoRoundOff"`
	TotalAmount       decimal.Decimal    `json:"totalAmount"`
	BalanceAmount     decimal.Decimal    `json:"balanceAmount"`
	AmountReceived    decimal.Decimal    `json:"amountReceived"`
	AmountRefunded    decimal.Decimal    `json:"amountRefunded"`
	OriginalSaleID    string             `json:"originalSaleId,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	IsDeleted         bool               `json:"isDeleted"`
	CreatedBy         string             `json:"createdBy"`
	UpdatedBy         string             `json:"updatedBy"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// SettledAmount is amountReceived for a sale and amountRefunded for a return.
func (d Document) SettledAmount() decimal.Decimal {
	if d.Kind == KindSaleReturn {
		return d.AmountRefunded
	}
	return d.AmountReceived
}

// DocumentInput is the create/update payload for both document kinds.
type DocumentInput struct {
	Prefix            string             `json:"prefix" validate:"omitempty,max=10,alphanum"`
	InvoiceDate       *time.Time         `json:"invoiceDate,omitempty"`
	PartyID           string             `json:"partyId"`
	SelectedParty     *PartyView         `json:"selectedParty,omitempty"`
	PaymentStatus     string             `json:"paymentStatus"`
	Items             []LineItem         `json:"items" validate:"max=500,dive"`
	AdditionalCharges []AdditionalCharge `json:"additionalCharges" validate:"max=50,dive"`
	DiscountOption    string             `json:"discountOption" validate:"omitempty,oneof=before-tax after-tax"`
	DiscountAmount    decimal.Decimal    `json:"discountAmount" validate:"gte=0"`
	ManualAdjustment  decimal.Decimal    `json:"manualAdjustment" validate:"gte=0"`
	AdjustmentType    string             `json:"adjustmentType" validate:"omitempty,oneof=add subtract"`
	AutoRoundOff      bool               `json:"autoRoundOff"`
	AmountReceived    decimal.Decimal    `json:"amountReceived" validate:"gte=0"`
	AmountRefunded    decimal.Decimal    `json:"amountRefunded" validate:"gte=0"`
	OriginalSaleID    string             `json:"originalSaleId"`
	Notes             string             `json:"notes" validate:"max=2000"`
}

type ListOptions struct {
	IncludeDeleted bool
}

type InvoicePreview struct {
	InvoiceNumber int64  `json:"invoiceNumber"`
	InvoiceNo     string `json:"invoiceNo"`
}

type DeleteResult struct {
	Message string `json:"message"`
}

type TransactionLink struct {
	Source string `json:"source"`
	RefID  string `json:"refId"`
}

// Transaction is a party ledger entry.
type Transaction struct {
	ID          string           `json:"id"`
	BusinessID  string           `json:"businessId"`
	PartyID     string           `json:"partyId"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Date        time.Time        `json:"date"`
	Linked      *TransactionLink `json:"linked,omitempty"`
	CreatedBy   string           `json:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type Counter struct {
	BusinessID string `json:"businessId"`
	Prefix     string `json:"prefix"`
	Seq        int64  `json:"seq"`
}

// StockAdjustment is one applied change to a product's currentStock.
type StockAdjustment struct {
	ProductID string          `json:"productId"`
	Delta     decimal.Decimal `json:"delta"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"businessId"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}
