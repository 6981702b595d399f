package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/money"
)

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeFixtureReceipt(t *testing.T) {
	// Two lines at 49.99 plus one at 24.99 with 10% discount and 18% tax.
	subtotal := money.Money(2*4999 + 2499)
	s := Compute(subtotal, pct(10), pct(18), TipSpec{})
	if s.Subtotal != 12497 {
		t.Fatalf("subtotal: expected 12497, got %d", s.Subtotal)
	}
	if s.Discount != 1250 {
		t.Fatalf("discount: expected 1250, got %d", s.Discount)
	}
	if s.Taxable != 11247 {
		t.Fatalf("taxable: expected 11247, got %d", s.Taxable)
	}
	if s.Tax != 2025 {
		t.Fatalf("tax: expected 2025, got %d", s.Tax)
	}
	if s.Total != 13272 {
		t.Fatalf("total: expected 13272, got %d", s.Total)
	}
}

func TestComputeZeroRatesShortCircuit(t *testing.T) {
	s := Compute(9999, decimal.Zero, decimal.Zero, TipSpec{})
	if s.Discount != 0 || s.Tax != 0 || s.Tip != 0 {
		t.Fatalf("expected zero components, got %+v", s)
	}
	if s.Total != 9999 || s.Taxable != 9999 {
		t.Fatalf("expected pass-through total, got %+v", s)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	s := Compute(0, pct(10), pct(18), TipSpec{Mode: TipPercent, Percent: pct(20)})
	if s != (Settlement{}) {
		t.Fatalf("expected all-zero settlement, got %+v", s)
	}
}

func TestComputePercentTipOnPostTaxAmount(t *testing.T) {
	s := Compute(10000, decimal.Zero, pct(10), TipSpec{Mode: TipPercent, Percent: pct(20)})
	// 20% of 110.00, not of 100.00.
	if s.Tip != 2200 {
		t.Fatalf("tip: expected 2200, got %d", s.Tip)
	}
	if s.Total != 13200 {
		t.Fatalf("total: expected 13200, got %d", s.Total)
	}
}

func TestComputeFixedTip(t *testing.T) {
	s := Compute(5000, decimal.Zero, decimal.Zero, TipSpec{Mode: TipFixed, Amount: 750})
	if s.Tip != 750 || s.Total != 5750 {
		t.Fatalf("expected fixed tip 750 and total 5750, got %+v", s)
	}
}

func TestComputeTotalIdentityHolds(t *testing.T) {
	subtotals := []money.Money{1, 99, 12497, 100000, 999999999}
	for _, subtotal := range subtotals {
		for dp := int64(0); dp <= 100; dp += 7 {
			for tp := int64(0); tp <= 30; tp += 3 {
				s := Compute(subtotal, pct(dp), pct(tp), TipSpec{Mode: TipPercent, Percent: pct(15)})
				if s.Total != s.Subtotal-s.Discount+s.Tax+s.Tip {
					t.Fatalf("identity broken for subtotal=%d dp=%d tp=%d: %+v", subtotal, dp, tp, s)
				}
				if s.Total < 0 {
					t.Fatalf("negative total for subtotal=%d dp=%d tp=%d: %+v", subtotal, dp, tp, s)
				}
			}
		}
	}
}

func TestComputeFullDiscount(t *testing.T) {
	s := Compute(12497, pct(100), pct(18), TipSpec{})
	if s.Discount != 12497 || s.Taxable != 0 || s.Tax != 0 || s.Total != 0 {
		t.Fatalf("expected fully discounted settlement, got %+v", s)
	}
}
