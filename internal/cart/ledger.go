// Package cart maintains the mutable working state of a register sale.
package cart

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// ErrNotFound indicates the requested line could not be located.
var ErrNotFound = errors.New("cart line not found")

// ErrInvalidQuantity is returned for quantity requests below one.
var ErrInvalidQuantity = errors.New("invalid quantity")

// ErrInvalidDiscount is returned when the discount percent is outside [0,100].
var ErrInvalidDiscount = errors.New("discount percent out of range")

// ErrInvalidTax is returned for negative tax rates.
var ErrInvalidTax = errors.New("tax percent must not be negative")

// ErrInvalidTip is returned for malformed tip specifications.
var ErrInvalidTip = errors.New("invalid tip")

// Modifier is a priced option attached to a line item. Immutable once attached.
type Modifier struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Price   money.Money `json:"price"`
	GroupID string      `json:"groupId,omitempty"`
}

// CatalogItem is the product snapshot the ledger needs when a line is added.
type CatalogItem struct {
	ID             string
	Name           string
	Price          money.Money
	Category       string
	AvailableStock int
}

// LineItem is one receipt line. Owned exclusively by the ledger containing it.
type LineItem struct {
	ID             string      `json:"id"`
	CatalogItemID  string      `json:"catalogItemId"`
	Name           string      `json:"name"`
	UnitPrice      money.Money `json:"unitPrice"`
	Quantity       int         `json:"quantity"`
	Category       string      `json:"category,omitempty"`
	AvailableStock int         `json:"availableStock"`
	Modifiers      []Modifier  `json:"modifiers,omitempty"`
}

// UnitTotal is the per-unit price including modifiers.
func (l LineItem) UnitTotal() money.Money {
	total := l.UnitPrice
	for _, m := range l.Modifiers {
		total += m.Price
	}
	return total
}

// LineTotal is the line amount in minor units.
func (l LineItem) LineTotal() money.Money {
	return l.UnitTotal() * money.Money(l.Quantity)
}

// Clone deep-copies the line so transaction snapshots cannot alias the ledger.
func (l LineItem) Clone() LineItem {
	out := l
	if len(l.Modifiers) > 0 {
		out.Modifiers = append([]Modifier(nil), l.Modifiers...)
	}
	return out
}

// modifierKey produces an order-insensitive fingerprint of a modifier set so
// identical product+modifier lines merge instead of duplicating.
func modifierKey(mods []Modifier) string {
	if len(mods) == 0 {
		return ""
	}
	ids := make([]string, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// Ledger holds the line items and pricing inputs of the active sale. Its
// operations are synchronous, in-memory and not internally thread-safe; the
// owning session serialises access.
type Ledger struct {
	items           []*LineItem
	discountPercent decimal.Decimal
	taxPercent      decimal.Decimal
	tip             pricing.TipSpec
	notes           string
	customerID      string
	newID           func() string
}

// NewLedger constructs an empty ledger with the given default tax rate.
func NewLedger(taxPercent decimal.Decimal) *Ledger {
	if taxPercent.IsNegative() {
		taxPercent = decimal.Zero
	}
	return &Ledger{taxPercent: taxPercent, newID: uuid.NewString}
}

// AddItem appends a line for the catalog item, or increments an existing line
// carrying the same product and modifier set. Quantities are capped at the
// stock snapshot taken here; the cap is reported via clamped, not an error.
func (g *Ledger) AddItem(item CatalogItem, qty int, mods []Modifier) (*LineItem, pricing.Settlement, bool, error) {
	if qty < 1 {
		return nil, g.Settlement(), false, fmt.Errorf("quantity %d: %w", qty, ErrInvalidQuantity)
	}
	key := modifierKey(mods)
	for _, line := range g.items {
		if line.CatalogItemID == item.ID && modifierKey(line.Modifiers) == key {
			requested := line.Quantity + qty
			clamped := false
			if requested > line.AvailableStock {
				requested = line.AvailableStock
				clamped = true
			}
			line.Quantity = requested
			return line, g.Settlement(), clamped, nil
		}
	}
	clamped := false
	if item.AvailableStock < 1 {
		return nil, g.Settlement(), false, fmt.Errorf("item %s out of stock: %w", item.ID, ErrInvalidQuantity)
	}
	if qty > item.AvailableStock {
		qty = item.AvailableStock
		clamped = true
	}
	line := &LineItem{
		ID:             g.id(),
		CatalogItemID:  item.ID,
		Name:           item.Name,
		UnitPrice:      item.Price,
		Quantity:       qty,
		Category:       item.Category,
		AvailableStock: item.AvailableStock,
	}
	if len(mods) > 0 {
		line.Modifiers = append([]Modifier(nil), mods...)
	}
	g.items = append(g.items, line)
	return line, g.Settlement(), clamped, nil
}

// SetQuantity updates a line quantity, clamping to the stock snapshot.
// Requests below one are rejected outright rather than treated as removal.
func (g *Ledger) SetQuantity(lineID string, qty int) (pricing.Settlement, bool, error) {
	if qty < 1 {
		return g.Settlement(), false, fmt.Errorf("quantity %d: %w", qty, ErrInvalidQuantity)
	}
	line := g.find(lineID)
	if line == nil {
		return g.Settlement(), false, fmt.Errorf("line %s: %w", lineID, ErrNotFound)
	}
	clamped := false
	if qty > line.AvailableStock {
		qty = line.AvailableStock
		clamped = true
	}
	line.Quantity = qty
	return g.Settlement(), clamped, nil
}

// RemoveItem deletes a line from the ledger.
func (g *Ledger) RemoveItem(lineID string) (pricing.Settlement, error) {
	for i, line := range g.items {
		if line.ID == lineID {
			g.items = append(g.items[:i], g.items[i+1:]...)
			return g.Settlement(), nil
		}
	}
	return g.Settlement(), fmt.Errorf("line %s: %w", lineID, ErrNotFound)
}

// Clear resets the ledger to an empty sale, dropping discount, tip, notes and
// the customer association. The tax rate is terminal configuration and stays.
func (g *Ledger) Clear() pricing.Settlement {
	g.items = nil
	g.discountPercent = decimal.Zero
	g.tip = pricing.TipSpec{}
	g.notes = ""
	g.customerID = ""
	return g.Settlement()
}

// SetDiscountPercent applies an order-level discount in [0,100].
func (g *Ledger) SetDiscountPercent(percent decimal.Decimal) (pricing.Settlement, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return g.Settlement(), fmt.Errorf("discount %s: %w", percent, ErrInvalidDiscount)
	}
	g.discountPercent = percent
	return g.Settlement(), nil
}

// SetTaxPercent overrides the tax rate for this sale.
func (g *Ledger) SetTaxPercent(percent decimal.Decimal) (pricing.Settlement, error) {
	if percent.IsNegative() {
		return g.Settlement(), fmt.Errorf("tax %s: %w", percent, ErrInvalidTax)
	}
	g.taxPercent = percent
	return g.Settlement(), nil
}

// SetTip configures the tip for this sale.
func (g *Ledger) SetTip(tip pricing.TipSpec) (pricing.Settlement, error) {
	switch tip.Mode {
	case pricing.TipNone:
	case pricing.TipPercent:
		if tip.Percent.IsNegative() {
			return g.Settlement(), fmt.Errorf("tip percent %s: %w", tip.Percent, ErrInvalidTip)
		}
	case pricing.TipFixed:
		if tip.Amount < 0 {
			return g.Settlement(), fmt.Errorf("tip amount %d: %w", tip.Amount, ErrInvalidTip)
		}
	default:
		return g.Settlement(), fmt.Errorf("tip mode %q: %w", tip.Mode, ErrInvalidTip)
	}
	g.tip = tip
	return g.Settlement(), nil
}

// AttachCustomer associates the sale with a customer record.
func (g *Ledger) AttachCustomer(customerID string) {
	g.customerID = strings.TrimSpace(customerID)
}

// SetNotes stores free-form receipt notes.
func (g *Ledger) SetNotes(notes string) {
	g.notes = notes
}

// Subtotal sums line totals in minor units.
func (g *Ledger) Subtotal() money.Money {
	var subtotal money.Money
	for _, line := range g.items {
		subtotal += line.LineTotal()
	}
	return subtotal
}

// Settlement recomputes the pricing breakdown from current state.
func (g *Ledger) Settlement() pricing.Settlement {
	return pricing.Compute(g.Subtotal(), g.discountPercent, g.taxPercent, g.tip)
}

// Items returns a deep copy of the lines in insertion order, which is the
// order they print on the receipt.
func (g *Ledger) Items() []LineItem {
	out := make([]LineItem, 0, len(g.items))
	for _, line := range g.items {
		out = append(out, line.Clone())
	}
	return out
}

// Len reports the number of lines.
func (g *Ledger) Len() int { return len(g.items) }

// IsEmpty reports whether the ledger has no lines.
func (g *Ledger) IsEmpty() bool { return len(g.items) == 0 }

// CustomerID returns the associated customer, if any.
func (g *Ledger) CustomerID() string { return g.customerID }

// Notes returns the receipt notes.
func (g *Ledger) Notes() string { return g.notes }

// DiscountPercent returns the active discount rate.
func (g *Ledger) DiscountPercent() decimal.Decimal { return g.discountPercent }

// TaxPercent returns the active tax rate.
func (g *Ledger) TaxPercent() decimal.Decimal { return g.taxPercent }

// Tip returns the active tip specification.
func (g *Ledger) Tip() pricing.TipSpec { return g.tip }

func (g *Ledger) find(lineID string) *LineItem {
	for _, line := range g.items {
		if line.ID == lineID {
			return line
		}
	}
	return nil
}

func (g *Ledger) id() string {
	if g.newID != nil {
		return g.newID()
	}
	return uuid.NewString()
}
