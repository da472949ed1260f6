// Package money is the tax and total computation engine. It is pure:
// no I/O, no clock, and all arithmetic runs on fixed-point decimals so
// repeated percentage operations never accumulate representational error.
//
// Both the forward path (line items to document totals) and the inverse
// path (tax back-computed from an inclusive total) live here so the
// rounding convention cannot drift between the two.
package money

import "github.com/shopspring/decimal"

// Jurisdiction describes the relation between the two taxed parties.
// When the facts are unknown the engine treats the parties as
// cross-jurisdiction; it never silently assumes same-jurisdiction.
type Jurisdiction string

const (
	JurisdictionSame    Jurisdiction = "same"
	JurisdictionCross   Jurisdiction = "cross"
	JurisdictionUnknown Jurisdiction = ""
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// LineInput is one line item as handed to the engine.
//
// DiscountAmount, when non-zero, overrides DiscountPercent: the percent
// is evaluated only when no explicit amount is supplied. This
// last-writer-wins rule is deliberate policy, not an error path.
type LineInput struct {
	Quantity        decimal.Decimal
	Rate            decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal // percent, e.g. 18 for 18% GST
	Jurisdiction    Jurisdiction
}

// LineTotals is the computed breakdown of a single line.
type LineTotals struct {
	LineTotal     decimal.Decimal
	Discount      decimal.Decimal
	TaxableAmount decimal.Decimal
	TaxA          decimal.Decimal
	TaxB          decimal.Decimal
	TaxCross      decimal.Decimal
	TotalTax      decimal.Decimal
	Total         decimal.Decimal
}

// DocumentInput aggregates lines plus an optional document-level
// discount, applied on the summed subtotal on top of (and independent
// from) any line-level discounts. As with lines, an explicit
// DiscountAmount overrides DiscountPercent.
type DocumentInput struct {
	Lines           []LineInput
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Precision       int32 // decimal places of the minor currency unit
}

// DocumentTotals is the computed document-level breakdown. The identity
//
//	TaxableAmount + TotalTax + RoundOff == GrandTotal
//
// holds exactly, with GrandTotal rounded half-up at Precision.
type DocumentTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxA           decimal.Decimal
	TaxB           decimal.Decimal
	TaxCross       decimal.Decimal
	TotalTax       decimal.Decimal
	RoundOff       decimal.Decimal
	GrandTotal     decimal.Decimal
}

// ComputeLine validates and computes a single line. Discount applies
// first, then tax on the discounted taxable amount. Same-jurisdiction
// tax splits evenly into buckets A and B; anything else, including
// unknown facts, lands in the cross bucket.
func ComputeLine(in LineInput) (LineTotals, error) {
	if !in.Quantity.IsPositive() {
		return LineTotals{}, ErrInvalidQuantity
	}
	if in.Rate.IsNegative() {
		return LineTotals{}, ErrInvalidRate
	}
	if in.TaxRate.IsNegative() {
		return LineTotals{}, ErrInvalidTaxRate
	}
	if in.DiscountAmount.IsNegative() {
		return LineTotals{}, ErrInvalidDiscount
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return LineTotals{}, ErrInvalidDiscount
	}

	lineTotal := in.Quantity.Mul(in.Rate)

	discount := in.DiscountAmount
	if discount.IsZero() && in.DiscountPercent.IsPositive() {
		discount = lineTotal.Mul(in.DiscountPercent).Div(hundred)
	}
	if discount.GreaterThan(lineTotal) {
		return LineTotals{}, ErrDiscountExceedsTotal
	}

	taxable := lineTotal.Sub(discount)
	totalTax := taxable.Mul(in.TaxRate).Div(hundred)

	out := LineTotals{
		LineTotal:     lineTotal,
		Discount:      discount,
		TaxableAmount: taxable,
		TotalTax:      totalTax,
		Total:         taxable.Add(totalTax),
	}

	if in.Jurisdiction == JurisdictionSame {
		// Bucket sums must equal the total tax exactly, so derive B
		// from the total rather than recomputing it.
		out.TaxA = totalTax.Div(two)
		out.TaxB = totalTax.Sub(out.TaxA)
	} else {
		out.TaxCross = totalTax
	}

	return out, nil
}

// ComputeDocument computes document totals from its lines. The grand
// total is rounded half-up to the minor currency unit and the signed
// remainder is kept so the closure invariant holds exactly.
func ComputeDocument(in DocumentInput) (DocumentTotals, error) {
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return DocumentTotals{}, ErrInvalidDiscount
	}
	if in.DiscountAmount.IsNegative() {
		return DocumentTotals{}, ErrInvalidDiscount
	}

	var totals DocumentTotals
	for _, line := range in.Lines {
		lt, err := ComputeLine(line)
		if err != nil {
			return DocumentTotals{}, err
		}
		totals.Subtotal = totals.Subtotal.Add(lt.LineTotal)
		totals.TaxableAmount = totals.TaxableAmount.Add(lt.TaxableAmount)
		totals.TaxA = totals.TaxA.Add(lt.TaxA)
		totals.TaxB = totals.TaxB.Add(lt.TaxB)
		totals.TaxCross = totals.TaxCross.Add(lt.TaxCross)
		totals.TotalTax = totals.TotalTax.Add(lt.TotalTax)
	}

	totals.DiscountAmount = in.DiscountAmount
	if totals.DiscountAmount.IsZero() && in.DiscountPercent.IsPositive() {
		totals.DiscountAmount = totals.Subtotal.Mul(in.DiscountPercent).Div(hundred)
	}
	if totals.DiscountAmount.GreaterThan(totals.TaxableAmount) {
		return DocumentTotals{}, ErrDiscountExceedsTotal
	}
	totals.TaxableAmount = totals.TaxableAmount.Sub(totals.DiscountAmount)

	unrounded := totals.TaxableAmount.Add(totals.TotalTax)
	totals.GrandTotal = RoundHalfUp(unrounded, in.Precision)
	totals.RoundOff = totals.GrandTotal.Sub(unrounded)

	return totals, nil
}

// SplitInclusive back-computes the pre-tax amount and the tax portion
// from a tax-inclusive total: amount = total / (1 + rate), rounded at
// the minor unit, and tax = total - amount so the parts always sum back
// to the total exactly.
func SplitInclusive(total, ratePercent decimal.Decimal, precision int32) (amount, tax decimal.Decimal, err error) {
	if total.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	if ratePercent.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidTaxRate
	}

	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	amount = RoundHalfUp(total.Div(divisor), precision)
	tax = total.Sub(amount)
	return amount, tax, nil
}

// RoundHalfUp rounds to the given number of decimal places with ties
// away from zero, the convention used for all monetary rounding here.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}
