package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/storage"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

// Store owns the cart line items. Every mutation is written through to the
// durable record before the in-memory state changes, so a successful call is
// never lost to a crash and a failed write leaves the cart untouched.
type Store struct {
	mu      sync.Mutex
	items   []LineItem
	records storage.Store
}

// NewStore builds a cart store backed by the given record store.
func NewStore(records storage.Store) (*Store, error) {
	if records == nil {
		return nil, fmt.Errorf("record store required")
	}
	return &Store{records: records}, nil
}

// Load seeds the cart from durable storage. Call once at startup.
func (s *Store) Load(ctx context.Context) error {
	stored, err := s.records.LoadCart(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = fromRecords(stored)
	s.mu.Unlock()
	return nil
}

// Add appends the product or, when already present, increments its quantity.
func (s *Store) Add(ctx context.Context, product Product, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if product.ID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	found := false
	for i := range next {
		if next[i].Product.ID == product.ID {
			next[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		next = append(next, LineItem{Product: product, Quantity: quantity})
	}

	return s.commit(ctx, next)
}

// Remove deletes the matching line item. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Product.ID != productID {
			next = append(next, item)
		}
	}
	if len(next) == len(s.items) {
		return nil
	}

	return s.commit(ctx, next)
}

// UpdateQuantity replaces the line item's quantity. Zero or negative removes
// the item.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return s.Remove(ctx, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	changed := false
	for i := range next {
		if next[i].Product.ID == productID {
			changed = next[i].Quantity != quantity
			next[i].Quantity = quantity
			break
		}
	}
	if !changed {
		return nil
	}

	return s.commit(ctx, next)
}

// Clear empties the cart and overwrites the durable record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, nil)
}

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Count is the sum of all quantities, recomputed on every call.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Total is the sum of price x quantity, recomputed on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// commit persists the candidate state and only then swaps it in. Callers hold
// the mutex.
func (s *Store) commit(ctx context.Context, next []LineItem) error {
	if err := s.records.SaveCart(ctx, toRecords(next)); err != nil {
		return err
	}
	s.items = next
	return nil
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
