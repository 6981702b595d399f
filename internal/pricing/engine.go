// Package pricing computes the settlement breakdown for a cart.
//
// The computation order is fixed for auditability: subtotal, discount, tax,
// tip, total. Re-ordering the steps changes the numbers and is not allowed.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/money"
)

// TipMode selects how the tip value is interpreted.
type TipMode string

const (
	// TipNone disables tipping.
	TipNone TipMode = ""
	// TipPercent computes the tip as a percentage of the post-tax amount.
	TipPercent TipMode = "percent"
	// TipFixed uses the configured amount directly.
	TipFixed TipMode = "fixed"
)

// TipSpec describes the requested tip.
type TipSpec struct {
	Mode    TipMode
	Percent decimal.Decimal
	Amount  money.Money
}

// Settlement is the derived discount/tax/tip/total breakdown for a cart. It
// is recomputed on every read and never cached across cart mutations.
type Settlement struct {
	Subtotal money.Money `json:"subtotal"`
	Discount money.Money `json:"discount"`
	Taxable  money.Money `json:"taxable"`
	Tax      money.Money `json:"tax"`
	Tip      money.Money `json:"tip"`
	Total    money.Money `json:"total"`
}

var oneHundred = decimal.NewFromInt(100)

// Compute runs the pipeline over a subtotal in minor units.
//
// Discount and tax are each rounded to minor units independently; tax is
// computed on the exact (unrounded) taxable amount so a rounded-up discount
// cannot shave a cent off the taxed base. Percentage tips are based on the
// post-tax amount.
func Compute(subtotal money.Money, discountPercent, taxPercent decimal.Decimal, tip TipSpec) Settlement {
	if subtotal <= 0 {
		return Settlement{}
	}

	sub := decimal.NewFromInt(int64(subtotal))

	var discount money.Money
	taxableExact := sub
	if discountPercent.IsPositive() {
		discountExact := sub.Mul(discountPercent).Div(oneHundred)
		discount = money.Money(discountExact.Round(0).IntPart())
		taxableExact = sub.Sub(discountExact)
	}
	taxable := subtotal - discount

	var tax money.Money
	if taxPercent.IsPositive() {
		tax = money.Money(taxableExact.Mul(taxPercent).Div(oneHundred).Round(0).IntPart())
	}

	var tipAmount money.Money
	switch tip.Mode {
	case TipPercent:
		if tip.Percent.IsPositive() {
			tipAmount = money.PercentOf(taxable+tax, tip.Percent)
		}
	case TipFixed:
		if tip.Amount > 0 {
			tipAmount = tip.Amount
		}
	}

	return Settlement{
		Subtotal: subtotal,
		Discount: discount,
		Taxable:  taxable,
		Tax:      tax,
		Tip:      tipAmount,
		Total:    subtotal - discount + tax + tipAmount,
	}
}
