package split

import (
	"errors"
	"testing"

	"github.com/noah-isme/pos-terminal/internal/money"
)

func TestAddPaymentTracksRemaining(t *testing.T) {
	r := NewReconciler(10000)
	if _, err := r.AddPayment(MethodCard, 6000, "alex"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.Remaining() != 4000 {
		t.Fatalf("expected remaining 4000, got %d", r.Remaining())
	}
	if r.IsComplete() {
		t.Fatal("split should not be complete yet")
	}
	if _, err := r.AddPayment(MethodCash, 4000, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !r.IsComplete() {
		t.Fatalf("expected complete split, remaining %d", r.Remaining())
	}
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	r := NewReconciler(5000)
	if _, err := r.AddPayment(MethodCard, 5001, ""); !errors.Is(err, ErrExceedsRemaining) {
		t.Fatalf("expected ErrExceedsRemaining, got %v", err)
	}
	if _, err := r.AddPayment(MethodCard, 0, ""); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}
	if _, err := r.AddPayment(Method("iou"), 100, ""); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for unknown method, got %v", err)
	}
}

func TestRemovePaymentReopensBalance(t *testing.T) {
	r := NewReconciler(5000)
	entry, _ := r.AddPayment(MethodCard, 5000, "")
	if !r.IsComplete() {
		t.Fatal("expected complete")
	}
	if err := r.RemovePayment(entry.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if r.IsComplete() || r.Remaining() != 5000 {
		t.Fatalf("expected reopened balance, remaining %d", r.Remaining())
	}
	if err := r.RemovePayment("missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestFinalizeRequiresCoverage(t *testing.T) {
	r := NewReconciler(10000)
	r.AddPayment(MethodCash, 9998, "")
	if _, err := r.Finalize(); !errors.Is(err, ErrIncompletePayment) {
		t.Fatalf("expected ErrIncompletePayment, got %v", err)
	}
	r.AddPayment(MethodCash, 1, "")
	// one cent under target is within epsilon
	entries, err := r.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestEqualSplitThreeWays(t *testing.T) {
	r := NewReconciler(10000)
	shares, err := r.EqualSplit(3)
	if err != nil {
		t.Fatalf("equal split: %v", err)
	}
	want := []money.Money{3334, 3333, 3333}
	for i, s := range shares {
		if s != want[i] {
			t.Fatalf("share %d: expected %d, got %d (shares %v)", i, want[i], s, shares)
		}
	}
	if _, err := r.EqualSplit(1); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for single payer, got %v", err)
	}
}

func TestEqualSplitAlwaysReconciles(t *testing.T) {
	for _, target := range []money.Money{1, 99, 10000, 12497, 13272, 999983} {
		for n := 2; n <= 20; n++ {
			r := NewReconciler(target)
			shares, err := r.EqualSplit(n)
			if err != nil {
				t.Fatalf("split %d/%d: %v", target, n, err)
			}
			for _, s := range shares {
				if s <= 0 && target >= money.Money(n) {
					t.Fatalf("split %d/%d produced non-positive share %d", target, n, s)
				}
				if _, err := r.AddPayment(MethodCash, s, ""); err != nil && target >= money.Money(n) {
					t.Fatalf("split %d/%d: paying share %d failed: %v", target, n, s, err)
				}
			}
			if target >= money.Money(n) && !r.IsComplete() {
				t.Fatalf("split %d/%d did not reconcile, remaining %d", target, n, r.Remaining())
			}
		}
	}
}

func TestReconcileExternalEntries(t *testing.T) {
	entries := []Entry{{ID: "a", Method: MethodCash, Amount: 6000}, {ID: "b", Method: MethodCard, Amount: 4000}}
	if err := Reconcile(entries, 10000); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := Reconcile(entries, 12000); !errors.Is(err, ErrIncompletePayment) {
		t.Fatalf("expected ErrIncompletePayment, got %v", err)
	}
	if err := Reconcile([]Entry{{Amount: -5}}, -5); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}
}
