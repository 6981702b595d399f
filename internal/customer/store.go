// Package customer is the in-memory loyalty/credit collaborator. Settlement
// events drive the balances; the engine never writes here directly.
package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
)

// ErrNotFound indicates the requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is one loyalty account.
type Customer struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone,omitempty"`
	LoyaltyPoints int64       `json:"loyaltyPoints"`
	CreditBalance money.Money `json:"creditBalance"`
	TotalSpent    money.Money `json:"totalSpent"`
	Visits        int         `json:"visits"`
}

// Store holds customers behind a read/write lock.
type Store struct {
	mu        sync.RWMutex
	customers map[string]Customer
	order     []string
}

// NewStore seeds the customer records.
func NewStore(customers []Customer) *Store {
	s := &Store{customers: make(map[string]Customer, len(customers))}
	for _, c := range customers {
		if _, exists := s.customers[c.ID]; !exists {
			s.order = append(s.order, c.ID)
		}
		s.customers[c.ID] = c
	}
	return s
}

// Get returns the customer with the given id.
func (s *Store) Get(id string) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// List returns all customers in seed order.
func (s *Store) List() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.customers[id])
	}
	return out
}

// ApplyPurchase adjusts loyalty and spend stats from a settlement event.
// Negative deltas (refunds) roll the stats back; balances floor at zero.
func (s *Store) ApplyPurchase(id string, pointsDelta int64, amountDelta money.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return
	}
	c.LoyaltyPoints += pointsDelta
	if c.LoyaltyPoints < 0 {
		c.LoyaltyPoints = 0
	}
	c.TotalSpent += amountDelta
	if c.TotalSpent < 0 {
		c.TotalSpent = 0
	}
	if amountDelta > 0 {
		c.Visits++
	} else if amountDelta < 0 && c.Visits > 0 {
		c.Visits--
	}
	s.customers[id] = c
}

// SeedCustomers returns the demo loyalty accounts.
func SeedCustomers() []Customer {
	return []Customer{
		{ID: "cus-001", Name: "Maya Tan", Phone: "+1-555-0101", LoyaltyPoints: 240, CreditBalance: money.MustParse("15.00")},
		{ID: "cus-002", Name: "Jonas Pirkl", Phone: "+1-555-0102", LoyaltyPoints: 80},
		{ID: "cus-003", Name: "Ana Reyes", Phone: "+1-555-0103", LoyaltyPoints: 1020, CreditBalance: money.MustParse("4.25")},
	}
}

// LoyaltyNotifier applies settlement and refund loyalty deltas to the store.
type LoyaltyNotifier struct {
	Store *Store
}

// Notify implements events.Notifier.
func (n LoyaltyNotifier) Notify(_ context.Context, event events.Event) error {
	if n.Store == nil {
		return errors.New("customer: store not configured")
	}
	switch event.Topic {
	case events.TopicTransactionCompleted:
		var payload events.TransactionCompletedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("customer: decode payload: %w", err)
		}
		if payload.CustomerID != "" {
			n.Store.ApplyPurchase(payload.CustomerID, payload.LoyaltyPoints, payload.PurchaseAmount)
		}
	case events.TopicTransactionRefunded:
		var payload events.TransactionRefundedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("customer: decode payload: %w", err)
		}
		if payload.CustomerID != "" {
			n.Store.ApplyPurchase(payload.CustomerID, payload.LoyaltyPoints, payload.PurchaseAmount)
		}
	}
	return nil
}
