// Package invoice computes document totals. The same Calculate call is used
// when a document is saved and when it is rendered again, so both paths
// always agree.
package invoice

import (
	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
	half    = decimal.RequireFromString("0.5")
)

type Input struct {
	Kind              domain.DocumentKind
	Items             []domain.LineItem
	DiscountAmount    decimal.Decimal
	DiscountOption    string
	AdditionalCharges []domain.AdditionalCharge
	ManualAdjustment  decimal.Decimal
	AdjustmentType    string
	AutoRoundOff      bool
	// PersistedTotal, when positive, replaces the computed total.
	PersistedTotal decimal.Decimal
	AmountReceived decimal.Decimal
	AmountRefunded decimal.Decimal
}

type Line struct {
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	Taxable  decimal.Decimal `json:"taxable"`
	Tax      decimal.Decimal `json:"tax"`
	CGSTRate decimal.Decimal `json:"cgstRate"`
	SGSTRate decimal.Decimal `json:"sgstRate"`
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	Total    decimal.Decimal `json:"total"`
}

type Result struct {
	Lines             []Line          `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ItemDiscountTotal decimal.Decimal `json:"itemDiscountTotal"`
	OverallDiscount   decimal.Decimal `json:"overallDiscount"`
	TaxTotal          decimal.Decimal `json:"taxTotal"`
	CGSTTotal         decimal.Decimal `json:"cgstTotal"`
	SGSTTotal         decimal.Decimal `json:"sgstTotal"`
	TaxableAmount     decimal.Decimal `json:"taxableAmount"`
	BaseTotal         decimal.Decimal `json:"baseTotal"`
	ChargesTotal      decimal.Decimal `json:"chargesTotal"`
	Adjustment        decimal.Decimal `json:"adjustment"`
	RawTotal          decimal.Decimal `json:"rawTotal"`
	RoundOff          decimal.Decimal `json:"roundOff"`
	FinalTotal        decimal.Decimal `json:"finalTotal"`
	Settled           decimal.Decimal `json:"settled"`
	Balance           decimal.Decimal `json:"balance"`
}

// FromDocument builds the calculation input for a stored document. When
// honorPersisted is false the stored totalAmount is ignored, which is what
// save-time callers want.
func FromDocument(doc domain.Document, honorPersisted bool) Input {
	in := Input{
		Kind:              doc.Kind,
		Items:             doc.Items,
		DiscountAmount:    doc.DiscountAmount,
		DiscountOption:    doc.DiscountOption,
		AdditionalCharges: doc.AdditionalCharges,
		ManualAdjustment:  doc.ManualAdjustment,
		AdjustmentType:    doc.AdjustmentType,
		AutoRoundOff:      doc.AutoRoundOff,
		AmountReceived:    doc.AmountReceived,
		AmountRefunded:    doc.AmountRefunded,
	}
	if honorPersisted {
		in.PersistedTotal = doc.TotalAmount
	}
	return in
}

func Calculate(in Input) Result {
	res := Result{Lines: make([]Line, 0, len(in.Items))}

	for _, item := range in.Items {
		line := calculateLine(item)
		res.Lines = append(res.Lines, line)
		res.Subtotal = res.Subtotal.Add(line.Amount)
		res.ItemDiscountTotal = res.ItemDiscountTotal.Add(line.Discount)
		res.TaxTotal = res.TaxTotal.Add(line.Tax)
		res.CGSTTotal = res.CGSTTotal.Add(line.CGST)
		res.SGSTTotal = res.SGSTTotal.Add(line.SGST)
	}

	res.OverallDiscount = in.DiscountAmount
	afterTax := in.DiscountOption == domain.DiscountAfterTax

	taxable := res.Subtotal.Sub(res.ItemDiscountTotal)
	if !afterTax {
		taxable = taxable.Sub(res.OverallDiscount)
	}
	res.TaxableAmount = decimal.Max(decimal.Zero, taxable)

	if in.DiscountOption == domain.DiscountBeforeTax {
		res.BaseTotal = res.Subtotal.Sub(res.ItemDiscountTotal).Sub(res.OverallDiscount).Add(res.TaxTotal)
	} else {
		res.BaseTotal = res.Subtotal.Sub(res.ItemDiscountTotal).Add(res.TaxTotal).Sub(res.OverallDiscount)
	}

	for _, charge := range in.AdditionalCharges {
		res.ChargesTotal = res.ChargesTotal.Add(charge.Amount)
	}

	res.Adjustment = in.ManualAdjustment
	if in.AdjustmentType == domain.AdjustmentSubtract {
		res.Adjustment = in.ManualAdjustment.Neg()
	}
	res.RawTotal = res.BaseTotal.Add(res.ChargesTotal).Add(res.Adjustment)

	total := res.RawTotal
	if in.PersistedTotal.IsPositive() {
		total = in.PersistedTotal
	}
	res.FinalTotal = total
	if in.AutoRoundOff {
		res.FinalTotal = roundHalfUp(total)
	}
	res.RoundOff = res.FinalTotal.Sub(total)

	if in.Kind == domain.KindSaleReturn {
		res.Settled = in.AmountRefunded
	} else {
		res.Settled = in.AmountReceived
	}
	res.Balance = res.FinalTotal.Sub(res.Settled)

	return res
}

func calculateLine(item domain.LineItem) Line {
	line := Line{Amount: item.Qty.Mul(item.Rate)}

	if item.DiscountAmount.IsPositive() {
		line.Discount = item.DiscountAmount
	} else if item.DiscountPercent.IsPositive() {
		line.Discount = line.Amount.Mul(item.DiscountPercent).Div(hundred)
	}
	// a line can be discounted to zero but never below it
	line.Discount = decimal.Min(line.Discount, line.Amount)
	line.Taxable = line.Amount.Sub(line.Discount)
	line.CGSTRate = item.CGSTRate
	line.SGSTRate = item.SGSTRate

	switch {
	case item.CGSTAmount.IsPositive() || item.SGSTAmount.IsPositive():
		line.CGST = item.CGSTAmount
		line.SGST = item.SGSTAmount
		line.Tax = item.CGSTAmount.Add(item.SGSTAmount)
	case item.TaxPercent.IsPositive():
		line.Tax = line.Taxable.Mul(item.TaxPercent).Div(hundred)
		// display split only: the rate on the line is unchanged
		line.CGST = line.Tax.Div(two)
		line.SGST = line.Tax.Sub(line.CGST)
		if line.CGSTRate.IsZero() && line.SGSTRate.IsZero() {
			line.CGSTRate = item.TaxPercent.Div(two)
			line.SGSTRate = item.TaxPercent.Sub(line.CGSTRate)
		}
	default:
		line.CGST = line.Taxable.Mul(item.CGSTRate).Div(hundred)
		line.SGST = line.Taxable.Mul(item.SGSTRate).Div(hundred)
		line.Tax = line.CGST.Add(line.SGST)
	}

	line.Total = line.Taxable.Add(line.Tax)
	return line
}

// roundHalfUp rounds to a whole unit with ties toward positive infinity, so
// -10.5 becomes -10 and 10.5 becomes 11.
func roundHalfUp(v decimal.Decimal) decimal.Decimal {
	return v.Add(half).Floor()
}
