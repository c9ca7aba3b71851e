package invoice

import (
	"testing"

	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("expected %s=%s, got %s", name, want, got.String())
	}
}

func TestCalculateScenarioA(t *testing.T) {
	res := Calculate(Input{
		Kind:           domain.KindSale,
		Items:          []domain.LineItem{{Name: "Widget", Qty: d("2"), Rate: d("100"), TaxPercent: d("18")}},
		AmountReceived: d("100"),
	})

	assertDec(t, "subtotal", res.Subtotal, "200")
	assertDec(t, "taxTotal", res.TaxTotal, "36")
	assertDec(t, "cgst", res.CGSTTotal, "18")
	assertDec(t, "sgst", res.SGSTTotal, "18")
	assertDec(t, "baseTotal", res.BaseTotal, "236")
	assertDec(t, "finalTotal", res.FinalTotal, "236")
	assertDec(t, "taxable", res.TaxableAmount, "200")
	assertDec(t, "balance", res.Balance, "136")
}

func TestCalculateEmptyItems(t *testing.T) {
	res := Calculate(Input{Kind: domain.KindSale})
	assertDec(t, "subtotal", res.Subtotal, "0")
	assertDec(t, "finalTotal", res.FinalTotal, "0")
	if len(res.Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(res.Lines))
	}
}

func TestCalculateSubtotalIsExactSum(t *testing.T) {
	items := []domain.LineItem{
		{Qty: d("3"), Rate: d("19.99")},
		{Qty: d("0.5"), Rate: d("7.10")},
		{Qty: d("12"), Rate: d("0.01")},
	}
	res := Calculate(Input{Kind: domain.KindSale, Items: items})
	assertDec(t, "subtotal", res.Subtotal, "63.64")
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := Input{
		Kind: domain.KindSale,
		Items: []domain.LineItem{
			{Qty: d("3"), Rate: d("33.33"), DiscountPercent: d("7.5"), TaxPercent: d("12")},
			{Qty: d("1"), Rate: d("999.99"), DiscountAmount: d("10"), TaxPercent: d("28")},
		},
		DiscountAmount:    d("15"),
		DiscountOption:    domain.DiscountBeforeTax,
		AdditionalCharges: []domain.AdditionalCharge{{Name: "Freight", Amount: d("40")}},
		ManualAdjustment:  d("2.25"),
		AdjustmentType:    domain.AdjustmentSubtract,
		AutoRoundOff:      true,
		AmountReceived:    d("500"),
	}

	first := Calculate(in)
	for i := 0; i < 20; i++ {
		next := Calculate(in)
		if !next.FinalTotal.Equal(first.FinalTotal) || !next.TaxableAmount.Equal(first.TaxableAmount) || !next.Balance.Equal(first.Balance) {
			t.Fatalf("run %d diverged: %s/%s/%s vs %s/%s/%s", i,
				next.FinalTotal, next.TaxableAmount, next.Balance,
				first.FinalTotal, first.TaxableAmount, first.Balance)
		}
	}
}

func TestCalculateDiscountOptions(t *testing.T) {
	items := []domain.LineItem{{Qty: d("1"), Rate: d("1000"), TaxPercent: d("10")}}

	cases := []struct {
		name        string
		option      string
		wantTaxable string
		wantTotal   string
	}{
		{name: "before tax", option: domain.DiscountBeforeTax, wantTaxable: "900", wantTotal: "1000"},
		{name: "after tax", option: domain.DiscountAfterTax, wantTaxable: "1000", wantTotal: "1000"},
		{name: "unset behaves as before tax for taxable", option: "", wantTaxable: "900", wantTotal: "1000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Calculate(Input{Kind: domain.KindSale, Items: items, DiscountAmount: d("100"), DiscountOption: tc.option})
			assertDec(t, "taxable", res.TaxableAmount, tc.wantTaxable)
			assertDec(t, "finalTotal", res.FinalTotal, tc.wantTotal)
		})
	}
}

func TestCalculateTaxableNeverNegative(t *testing.T) {
	res := Calculate(Input{
		Kind:           domain.KindSale,
		Items:          []domain.LineItem{{Qty: d("1"), Rate: d("50")}},
		DiscountAmount: d("80"),
	})
	assertDec(t, "taxable", res.TaxableAmount, "0")
	assertDec(t, "finalTotal", res.FinalTotal, "-30")
}

func TestCalculateChargesAndAdjustment(t *testing.T) {
	items := []domain.LineItem{{Qty: d("4"), Rate: d("25")}}
	charges := []domain.AdditionalCharge{{Name: "Packing", Amount: d("12.5")}, {Name: "Delivery", Amount: d("30")}}

	add := Calculate(Input{Kind: domain.KindSale, Items: items, AdditionalCharges: charges, ManualAdjustment: d("7.5"), AdjustmentType: domain.AdjustmentAdd})
	assertDec(t, "add total", add.FinalTotal, "150")

	sub := Calculate(Input{Kind: domain.KindSale, Items: items, AdditionalCharges: charges, ManualAdjustment: d("7.5"), AdjustmentType: domain.AdjustmentSubtract})
	assertDec(t, "subtract total", sub.FinalTotal, "135")
}

func TestCalculateAutoRoundOff(t *testing.T) {
	items := []domain.LineItem{{Qty: d("1"), Rate: d("99.49")}}

	rounded := Calculate(Input{Kind: domain.KindSale, Items: items, AutoRoundOff: true})
	assertDec(t, "finalTotal", rounded.FinalTotal, "99")
	assertDec(t, "roundOff", rounded.RoundOff, "-0.49")

	plain := Calculate(Input{Kind: domain.KindSale, Items: items})
	assertDec(t, "finalTotal", plain.FinalTotal, "99.49")
	assertDec(t, "roundOff", plain.RoundOff, "0")
}

func TestCalculatePersistedTotalWins(t *testing.T) {
	items := []domain.LineItem{{Qty: d("2"), Rate: d("100"), TaxPercent: d("18")}}

	res := Calculate(Input{Kind: domain.KindSale, Items: items, PersistedTotal: d("240.40"), AmountReceived: d("40")})
	assertDec(t, "finalTotal", res.FinalTotal, "240.40")
	assertDec(t, "rawTotal", res.RawTotal, "236")
	assertDec(t, "balance", res.Balance, "200.40")

	rounded := Calculate(Input{Kind: domain.KindSale, Items: items, PersistedTotal: d("240.60"), AutoRoundOff: true})
	assertDec(t, "rounded persisted", rounded.FinalTotal, "241")

	zero := Calculate(Input{Kind: domain.KindSale, Items: items, PersistedTotal: decimal.Zero})
	assertDec(t, "zero persisted falls back", zero.FinalTotal, "236")
}

func TestCalculateExplicitGSTAmounts(t *testing.T) {
	res := Calculate(Input{
		Kind: domain.KindSale,
		Items: []domain.LineItem{
			{Qty: d("1"), Rate: d("100"), TaxPercent: d("18"), CGSTRate: d("9"), SGSTRate: d("9"), CGSTAmount: d("9"), SGSTAmount: d("9.5")},
			{Qty: d("1"), Rate: d("100"), TaxPercent: d("5")},
		},
	})
	assertDec(t, "taxTotal", res.TaxTotal, "23.5")
	assertDec(t, "cgst", res.CGSTTotal, "11.5")
	assertDec(t, "sgst", res.SGSTTotal, "12")
}

func TestCalculateItemDiscounts(t *testing.T) {
	res := Calculate(Input{
		Kind: domain.KindSale,
		Items: []domain.LineItem{
			{Qty: d("2"), Rate: d("50"), DiscountPercent: d("10"), TaxPercent: d("10")},
			{Qty: d("1"), Rate: d("200"), DiscountPercent: d("50"), DiscountAmount: d("20")},
		},
	})
	assertDec(t, "itemDiscount", res.ItemDiscountTotal, "30")
	assertDec(t, "tax", res.TaxTotal, "9")
	assertDec(t, "finalTotal", res.FinalTotal, "279")
}

func TestCalculateReturnBalanceUsesRefund(t *testing.T) {
	res := Calculate(Input{
		Kind:           domain.KindSaleReturn,
		Items:          []domain.LineItem{{Qty: d("1"), Rate: d("100")}},
		AmountReceived: d("70"),
		AmountRefunded: d("100"),
	})
	assertDec(t, "finalTotal", res.FinalTotal, "100")
	assertDec(t, "balance", res.Balance, "0")
}

func TestFromDocumentHonorsPersistedOnlyWhenAsked(t *testing.T) {
	doc := domain.Document{
		Kind:        domain.KindSale,
		Items:       []domain.LineItem{{Qty: d("1"), Rate: d("10")}},
		TotalAmount: d("12"),
	}
	assertDec(t, "render", Calculate(FromDocument(doc, true)).FinalTotal, "12")
	assertDec(t, "save", Calculate(FromDocument(doc, false)).FinalTotal, "10")
}

func TestCalculateExplicitRatesWithoutAmounts(t *testing.T) {
	res := Calculate(Input{
		Kind:  domain.KindSale,
		Items: []domain.LineItem{{Qty: d("2"), Rate: d("100"), CGSTRate: d("9"), SGSTRate: d("9")}},
	})
	assertDec(t, "taxTotal", res.TaxTotal, "36")
	assertDec(t, "cgst", res.CGSTTotal, "18")
	assertDec(t, "sgst", res.SGSTTotal, "18")
	assertDec(t, "finalTotal", res.FinalTotal, "236")
	assertDec(t, "line cgstRate", res.Lines[0].CGSTRate, "9")
	assertDec(t, "line sgstRate", res.Lines[0].SGSTRate, "9")

	uneven := Calculate(Input{
		Kind:  domain.KindSale,
		Items: []domain.LineItem{{Qty: d("1"), Rate: d("200"), CGSTRate: d("6"), SGSTRate: d("2.5")}},
	})
	assertDec(t, "cgst", uneven.CGSTTotal, "12")
	assertDec(t, "sgst", uneven.SGSTTotal, "5")

	split := Calculate(Input{
		Kind:  domain.KindSale,
		Items: []domain.LineItem{{Qty: d("1"), Rate: d("100"), TaxPercent: d("18")}},
	})
	assertDec(t, "derived cgstRate", split.Lines[0].CGSTRate, "9")
	assertDec(t, "derived sgstRate", split.Lines[0].SGSTRate, "9")
}

func TestCalculateLineDiscountAmountCappedAtLineAmount(t *testing.T) {
	res := Calculate(Input{
		Kind:  domain.KindSale,
		Items: []domain.LineItem{{Qty: d("1"), Rate: d("100"), DiscountAmount: d("150"), TaxPercent: d("18")}},
	})
	assertDec(t, "line discount", res.Lines[0].Discount, "100")
	assertDec(t, "line tax", res.Lines[0].Tax, "0")
	assertDec(t, "taxable", res.TaxableAmount, "0")
	assertDec(t, "finalTotal", res.FinalTotal, "0")
}

func TestCalculateLineDiscountPercentCappedAtLineAmount(t *testing.T) {
	res := Calculate(Input{
		Kind:  domain.KindSale,
		Items: []domain.LineItem{{Qty: d("2"), Rate: d("50"), DiscountPercent: d("150"), TaxPercent: d("12")}},
	})
	assertDec(t, "line discount", res.Lines[0].Discount, "100")
	assertDec(t, "line total", res.Lines[0].Total, "0")
	assertDec(t, "finalTotal", res.FinalTotal, "0")
}

func TestCalculateRoundOffTiesGoUp(t *testing.T) {
	items := []domain.LineItem{{Qty: d("1"), Rate: d("10")}}

	negative := Calculate(Input{Kind: domain.KindSale, Items: items, ManualAdjustment: d("20.5"), AdjustmentType: domain.AdjustmentSubtract, AutoRoundOff: true})
	assertDec(t, "rawTotal", negative.RawTotal, "-10.5")
	assertDec(t, "finalTotal", negative.FinalTotal, "-10")
	assertDec(t, "roundOff", negative.RoundOff, "0.5")

	positive := Calculate(Input{Kind: domain.KindSale, Items: items, ManualAdjustment: d("0.5"), AdjustmentType: domain.AdjustmentAdd, AutoRoundOff: true})
	assertDec(t, "finalTotal", positive.FinalTotal, "11")
}
