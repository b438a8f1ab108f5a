// Package cartstore holds one tenant's cart in memory and mirrors every change
// to a durable storage record.
package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chygoz/storefront/internal/domain"
	"github.com/chygoz/storefront/internal/storage"
)

const keyPrefix = "cart-"

// Key returns the durable record key for a tenant.
func Key(storeID string) string {
	return keyPrefix + storeID
}

// Store is the cart for one tenant. Mutations update the in-memory items and
// then persist the complete item list before returning.
//
// The store does not validate items: zero quantities or negative prices passed
// to AddItem are kept as given.
type Store struct {
	mu      sync.Mutex
	storeID string
	key     string
	items   []domain.CartItem
	storage storage.Storage
	logger  *slog.Logger
}

// New creates the cart for storeID and hydrates it from st. A missing,
// unreadable or corrupt record yields an empty cart; the failure is logged and
// never returned.
func New(ctx context.Context, storeID string, st storage.Storage, logger *slog.Logger) *Store {
	s := &Store{
		storeID: storeID,
		key:     Key(storeID),
		storage: st,
		logger:  logger,
	}
	s.hydrate(ctx)
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	data, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		hydrateFailures.WithLabelValues("read").Inc()
		s.logger.WarnContext(ctx, "failed to read stored cart, starting empty",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return
	}
	if !found {
		return
	}

	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		hydrateFailures.WithLabelValues("decode").Inc()
		s.logger.WarnContext(ctx, "stored cart is corrupt, starting empty",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.items = items
}

// AddItem adds item to the cart. A non-empty cart owned by another store is
// replaced by a cart holding only item. An existing line with the same id has
// its quantity increased by item.Quantity; otherwise item is appended.
func (s *Store) AddItem(ctx context.Context, item domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch idx := domain.FindItemIndex(s.items, item.ID); {
	case len(s.items) > 0 && s.items[0].StoreID != item.StoreID:
		s.items = []domain.CartItem{item}
	case idx >= 0:
		s.items[idx].Quantity += item.Quantity
	default:
		s.items = append(s.items, item)
	}

	return s.persist(ctx, "add_item")
}

// RemoveItem drops the line with the given id. Unknown ids leave the cart as is.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
	return s.persist(ctx, "remove_item")
}

// UpdateQuantity sets the quantity of the line with the given id. A quantity
// below 1 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		s.removeLocked(id)
	} else if idx := domain.FindItemIndex(s.items, id); idx >= 0 {
		s.items[idx].Quantity = quantity
	}

	return s.persist(ctx, "update_quantity")
}

// ClearCart empties the cart and deletes its durable record.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persist(ctx, "clear_cart")
}

func (s *Store) removeLocked(id string) {
	if idx := domain.FindItemIndex(s.items, id); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
}

// persist writes the complete item list, or deletes the record once the cart
// is empty. The in-memory change is kept even when the write fails.
func (s *Store) persist(ctx context.Context, op string) error {
	var err error
	if len(s.items) == 0 {
		err = s.storage.Remove(ctx, s.key)
	} else {
		var data []byte
		data, err = json.Marshal(s.items)
		if err == nil {
			err = s.storage.Set(ctx, s.key, data)
		}
	}
	if err != nil {
		persistErrors.WithLabelValues(op).Inc()
		s.logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("key", s.key),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// TotalItems returns the sum of all line quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TotalItems(s.items)
}

// Subtotal returns the sum of price * quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.items)
}

// StoreID returns the store owning the first line, or the store the cart was
// created for when it is empty.
func (s *Store) StoreID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeIDLocked()
}

func (s *Store) storeIDLocked() string {
	if len(s.items) > 0 {
		return s.items[0].StoreID
	}
	return s.storeID
}

// Snapshot returns the cart read model with freshly computed aggregates.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	return domain.Cart{
		StoreID:    s.storeIDLocked(),
		Items:      items,
		TotalItems: domain.TotalItems(items),
		Subtotal:   domain.Subtotal(items),
	}
}
