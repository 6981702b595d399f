// Package money implements integer minor-unit currency arithmetic.
//
// All accumulation happens in int64 cents so repeated additions never drift
// the way float64 sums do; decimal values only appear at the parse/format
// boundary.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount expressed in minor currency units (cents). It marshals
// as a two-place decimal string, so JSON boundaries exchange decimal values
// while all arithmetic stays in integers.
type Money int64

// ErrInvalidAmount is returned when a decimal value cannot be represented in minor units.
var ErrInvalidAmount = errors.New("invalid money amount")

var hundred = decimal.NewFromInt(100)

// MarshalJSON renders the amount as a decimal string, "132.72" for 13272.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(m))
}

// UnmarshalJSON accepts a decimal string or bare number and converts it to
// minor units.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("unmarshal amount %s: %w", data, ErrInvalidAmount)
	}
	*m = FromDecimal(d)
	return nil
}

// Parse converts a decimal string such as "49.99" into minor units.
func Parse(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, ErrInvalidAmount)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for trusted literals, panicking on malformed input.
func MustParse(value string) Money {
	m, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts a decimal amount to minor units, rounding half-up at
// the cent boundary.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// ToDecimal converts minor units back to a decimal amount.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(hundred)
}

// Format renders minor units as a two-place decimal string.
func Format(m Money) string {
	return ToDecimal(m).StringFixed(2)
}

// Multiply scales an amount by an arbitrary decimal factor, rounding half-up
// at the minor-unit boundary.
func Multiply(m Money, factor decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(factor).Round(0).IntPart())
}

// PercentOf returns percent% of the amount, rounded half-up to minor units.
func PercentOf(m Money, percent decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(percent).Div(hundred).Round(0).IntPart())
}

// SplitEven divides total across n shares so the shares sum exactly to total.
// Any remainder cents are absorbed by the first shares, largest first, so an
// equal split of 100.00 across 3 yields 33.34, 33.33, 33.33.
func SplitEven(total Money, n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split count must be positive: %w", ErrInvalidAmount)
	}
	base := total / Money(n)
	remainder := total - base*Money(n)
	shares := make([]Money, n)
	for i := range shares {
		shares[i] = base
		if Money(i) < remainder {
			shares[i]++
		} else if Money(int64(n)-int64(i)) <= -remainder {
			// negative totals leave a negative remainder; trailing shares absorb it
			shares[i]--
		}
	}
	return shares, nil
}
