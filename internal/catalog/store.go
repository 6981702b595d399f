// Package catalog is the in-memory product collaborator the engine consults
// for prices and stock. It stands in for a real inventory backend and can
// simulate its lookup latency.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
)

// ErrNotFound indicates the requested item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Item is one sellable product.
type Item struct {
	ID             string      `json:"id"`
	SKU            string      `json:"sku"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	TaxCategory    string      `json:"taxCategory"`
	Price          money.Money `json:"price"`
	AvailableStock int         `json:"availableStock"`
}

// Store holds the catalog behind a read/write lock. Stock levels change only
// through settlement and refund events.
type Store struct {
	mu      sync.RWMutex
	items   map[string]Item
	order   []string
	latency time.Duration
}

// NewStore seeds the catalog. A non-zero latency is applied to every lookup
// to mimic the upstream service this store mocks.
func NewStore(items []Item, latency time.Duration) *Store {
	s := &Store{items: make(map[string]Item, len(items)), latency: latency}
	for _, it := range items {
		if _, exists := s.items[it.ID]; !exists {
			s.order = append(s.order, it.ID)
		}
		s.items[it.ID] = it
	}
	return s
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(ctx context.Context, id string) (Item, error) {
	if err := s.simulate(ctx); err != nil {
		return Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item, nil
}

// List returns all items in seed order.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out, nil
}

// AvailableStock implements the settlement stock lookup.
func (s *Store) AvailableStock(ctx context.Context, id string) (int, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return 0, err
	}
	return item.AvailableStock, nil
}

// AdjustStock applies a quantity delta, clamping at zero. Unknown items are
// ignored: the event already happened and cannot be rejected retroactively.
func (s *Store) AdjustStock(id string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return
	}
	item.AvailableStock += delta
	if item.AvailableStock < 0 {
		item.AvailableStock = 0
	}
	s.items[id] = item
}

func (s *Store) simulate(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InventoryNotifier applies settlement and refund stock deltas to the store.
type InventoryNotifier struct {
	Store *Store
}

// Notify implements events.Notifier.
func (n InventoryNotifier) Notify(_ context.Context, event events.Event) error {
	if n.Store == nil {
		return errors.New("catalog: store not configured")
	}
	var deltas []events.StockDelta
	switch event.Topic {
	case events.TopicTransactionCompleted:
		var payload events.TransactionCompletedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("catalog: decode payload: %w", err)
		}
		deltas = payload.StockDeltas
	case events.TopicTransactionRefunded:
		var payload events.TransactionRefundedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("catalog: decode payload: %w", err)
		}
		deltas = payload.StockDeltas
	default:
		return nil
	}
	for _, d := range deltas {
		n.Store.AdjustStock(d.CatalogItemID, d.QuantityDelta)
	}
	return nil
}
