package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeDocument_SameJurisdictionScenario(t *testing.T) {
	// Two lines, 18% GST, same jurisdiction, no discounts.
	totals, err := ComputeDocument(DocumentInput{
		Lines: []LineInput{
			{Quantity: dec("1"), Rate: dec("8000.00"), TaxRate: dec("18"), Jurisdiction: JurisdictionSame},
			{Quantity: dec("1"), Rate: dec("2000.00"), TaxRate: dec("18"), Jurisdiction: JurisdictionSame},
		},
		Precision: 2,
	})
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(dec("10000.00")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.TaxA.Equal(dec("900.00")), "taxA %s", totals.TaxA)
	assert.True(t, totals.TaxB.Equal(dec("900.00")), "taxB %s", totals.TaxB)
	assert.True(t, totals.TaxCross.IsZero(), "taxCross %s", totals.TaxCross)
	assert.True(t, totals.TotalTax.Equal(dec("1800.00")), "totalTax %s", totals.TotalTax)
	assert.True(t, totals.GrandTotal.Equal(dec("11800.00")), "grandTotal %s", totals.GrandTotal)
	assert.True(t, totals.RoundOff.IsZero(), "roundOff %s", totals.RoundOff)
}

func TestComputeLine_JurisdictionSplit(t *testing.T) {
	taxable := dec("100.00")

	same, err := ComputeLine(LineInput{Quantity: dec("1"), Rate: taxable, TaxRate: dec("18"), Jurisdiction: JurisdictionSame})
	require.NoError(t, err)
	assert.True(t, same.TaxA.Equal(same.TaxB))
	assert.True(t, same.TaxA.Add(same.TaxB).Equal(same.TotalTax))
	assert.True(t, same.TaxCross.IsZero())

	cross, err := ComputeLine(LineInput{Quantity: dec("1"), Rate: taxable, TaxRate: dec("18"), Jurisdiction: JurisdictionCross})
	require.NoError(t, err)
	assert.True(t, cross.TaxCross.Equal(cross.TotalTax))
	assert.True(t, cross.TaxA.IsZero())
	assert.True(t, cross.TaxB.IsZero())
}

func TestComputeLine_UnknownJurisdictionFailsSafeToCross(t *testing.T) {
	lt, err := ComputeLine(LineInput{Quantity: dec("2"), Rate: dec("50"), TaxRate: dec("12")})
	require.NoError(t, err)
	assert.True(t, lt.TaxCross.Equal(lt.TotalTax))
	assert.True(t, lt.TaxA.IsZero())
}

func TestComputeLine_ExplicitDiscountOverridesPercent(t *testing.T) {
	lt, err := ComputeLine(LineInput{
		Quantity:        dec("1"),
		Rate:            dec("1000"),
		DiscountPercent: dec("50"),
		DiscountAmount:  dec("100"),
		TaxRate:         dec("18"),
		Jurisdiction:    JurisdictionCross,
	})
	require.NoError(t, err)
	assert.True(t, lt.Discount.Equal(dec("100")), "explicit amount wins over percent")
	assert.True(t, lt.TaxableAmount.Equal(dec("900")))
}

func TestComputeLine_PercentDiscountWhenNoAmount(t *testing.T) {
	lt, err := ComputeLine(LineInput{
		Quantity:        dec("1"),
		Rate:            dec("1000"),
		DiscountPercent: dec("10"),
		TaxRate:         dec("18"),
		Jurisdiction:    JurisdictionSame,
	})
	require.NoError(t, err)
	assert.True(t, lt.Discount.Equal(dec("100")))
	assert.True(t, lt.TaxableAmount.Equal(dec("900")))
}

func TestComputeLine_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   LineInput
		want error
	}{
		{"negative quantity", LineInput{Quantity: dec("-1"), Rate: dec("10")}, ErrInvalidQuantity},
		{"zero quantity", LineInput{Quantity: dec("0"), Rate: dec("10")}, ErrInvalidQuantity},
		{"negative rate", LineInput{Quantity: dec("1"), Rate: dec("-10")}, ErrInvalidRate},
		{"negative tax", LineInput{Quantity: dec("1"), Rate: dec("10"), TaxRate: dec("-1")}, ErrInvalidTaxRate},
		{"discount over total", LineInput{Quantity: dec("1"), Rate: dec("10"), DiscountAmount: dec("11")}, ErrDiscountExceedsTotal},
		{"percent over 100", LineInput{Quantity: dec("1"), Rate: dec("10"), DiscountPercent: dec("101")}, ErrInvalidDiscount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeLine(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestComputeDocument_DocumentDiscountAdditiveToLineDiscounts(t *testing.T) {
	totals, err := ComputeDocument(DocumentInput{
		Lines: []LineInput{
			{Quantity: dec("1"), Rate: dec("1000"), DiscountPercent: dec("10"), TaxRate: dec("18"), Jurisdiction: JurisdictionSame},
		},
		DiscountPercent: dec("5"),
		Precision:       2,
	})
	require.NoError(t, err)

	// Line discount 100 leaves 900 taxable; document discount is 5% of
	// the 1000 subtotal, applied on top.
	assert.True(t, totals.DiscountAmount.Equal(dec("50")))
	assert.True(t, totals.TaxableAmount.Equal(dec("850")))
}

func TestComputeDocument_RoundingClosure(t *testing.T) {
	inputs := []DocumentInput{
		{Lines: nil, Precision: 2},
		{Lines: []LineInput{
			{Quantity: dec("3"), Rate: dec("33.33"), TaxRate: dec("18"), Jurisdiction: JurisdictionSame},
		}, Precision: 2},
		{Lines: []LineInput{
			{Quantity: dec("0.125"), Rate: dec("7.77"), TaxRate: dec("12.5"), Jurisdiction: JurisdictionCross},
			{Quantity: dec("9.999"), Rate: dec("123.45"), DiscountPercent: dec("7.5"), TaxRate: dec("18"), Jurisdiction: JurisdictionSame},
		}, Precision: 2},
		{Lines: []LineInput{
			{Quantity: dec("1"), Rate: dec("10000000.00"), TaxRate: dec("28"), Jurisdiction: JurisdictionSame},
		}, DiscountPercent: dec("3"), Precision: 2},
	}

	for _, in := range inputs {
		totals, err := ComputeDocument(in)
		require.NoError(t, err)

		closure := totals.TaxableAmount.Add(totals.TotalTax).Add(totals.RoundOff)
		assert.True(t, closure.Equal(totals.GrandTotal),
			"taxable %s + tax %s + roundoff %s != grand %s",
			totals.TaxableAmount, totals.TotalTax, totals.RoundOff, totals.GrandTotal)

		bucketSum := totals.TaxA.Add(totals.TaxB).Add(totals.TaxCross)
		assert.True(t, bucketSum.Equal(totals.TotalTax),
			"buckets %s != total tax %s", bucketSum, totals.TotalTax)
	}
}

func TestComputeDocument_EmptyIsZeroEverywhere(t *testing.T) {
	totals, err := ComputeDocument(DocumentInput{Precision: 2})
	require.NoError(t, err)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.RoundOff.IsZero())
}

func TestSplitInclusive_ReceiptScenario(t *testing.T) {
	amount, tax, err := SplitInclusive(dec("99.00"), dec("18"), 2)
	require.NoError(t, err)

	// 99 / 1.18 = 83.898..., rounded half-up at the minor unit.
	assert.True(t, amount.Equal(dec("83.90")), "amount %s", amount)
	assert.True(t, tax.Equal(dec("15.10")), "tax %s", tax)
	assert.True(t, amount.Add(tax).Equal(dec("99.00")))
}

func TestSplitInclusive_ZeroRate(t *testing.T) {
	amount, tax, err := SplitInclusive(dec("50.00"), decimal.Zero, 2)
	require.NoError(t, err)
	assert.True(t, amount.Equal(dec("50.00")))
	assert.True(t, tax.IsZero())
}

func TestSplitInclusive_Validation(t *testing.T) {
	_, _, err := SplitInclusive(dec("-1"), dec("18"), 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = SplitInclusive(dec("1"), dec("-18"), 2)
	assert.ErrorIs(t, err, ErrInvalidTaxRate)
}
