package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/storage"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

type stubRecordStore struct {
	cart    []storage.CartItem
	saveErr error
	saves   int
}

func (s *stubRecordStore) LoadCart(ctx context.Context) ([]storage.CartItem, error) {
	return s.cart, nil
}

func (s *stubRecordStore) SaveCart(ctx context.Context, items []storage.CartItem) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cart = items
	s.saves++
	return nil
}

func (s *stubRecordStore) LoadCredentials(ctx context.Context) (*storage.Credentials, error) {
	return nil, nil
}
func (s *stubRecordStore) SaveCredentials(ctx context.Context, creds storage.Credentials) error {
	return nil
}
func (s *stubRecordStore) ClearCredentials(ctx context.Context) error { return nil }
func (s *stubRecordStore) Close() error                               { return nil }

func price(val string) decimal.Decimal {
	d, err := decimal.NewFromString(val)
	if err != nil {
		panic(err)
	}
	return d
}

func mug() Product   { return Product{ID: 1, Name: "Mug", Price: price("12.50")} }
func shirt() Product { return Product{ID: 2, Name: "Shirt", Price: price("30.00")} }

func newTestStore(t *testing.T, records *stubRecordStore) *Store {
	t.Helper()
	store, err := NewStore(records)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	return store
}

func TestAddMergesSameProduct(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &stubRecordStore{})
	ctx := context.Background()

	if err := store.Add(ctx, mug(), 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := store.Add(ctx, mug(), 3); err != nil {
		t.Fatalf("second add: %v", err)
	}

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected one line item, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", items[0].Quantity)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	records := &stubRecordStore{}
	store := newTestStore(t, records)
	ctx := context.Background()

	for _, qty := range []int{0, -1, -100} {
		err := store.Add(ctx, mug(), qty)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
	if store.Count() != 0 {
		t.Fatalf("rejected adds must not mutate state, count=%d", store.Count())
	}
	if records.saves != 0 {
		t.Fatalf("rejected adds must not touch storage, saves=%d", records.saves)
	}
}

func TestCountAndTotalRecomputed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &stubRecordStore{})
	ctx := context.Background()

	if err := store.Add(ctx, mug(), 2); err != nil {
		t.Fatalf("add mug: %v", err)
	}
	if err := store.Add(ctx, shirt(), 1); err != nil {
		t.Fatalf("add shirt: %v", err)
	}

	if store.Count() != 3 {
		t.Fatalf("expected count 3, got %d", store.Count())
	}
	if want := price("55.00"); !store.Total().Equal(want) {
		t.Fatalf("expected total %s, got %s", want, store.Total())
	}

	if err := store.UpdateQuantity(ctx, mug().ID, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if want := price("42.50"); !store.Total().Equal(want) {
		t.Fatalf("total must reflect mutation synchronously, got %s", store.Total())
	}
}

func TestUpdateQuantityZeroOrNegativeRemoves(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &stubRecordStore{})
	ctx := context.Background()

	if err := store.Add(ctx, mug(), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.UpdateQuantity(ctx, mug().ID, 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if store.Count() != 0 {
		t.Fatal("expected item removed at quantity 0")
	}

	if err := store.Add(ctx, mug(), 2); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if err := store.UpdateQuantity(ctx, mug().ID, -1); err != nil {
		t.Fatalf("update to -1: %v", err)
	}
	if store.Count() != 0 {
		t.Fatal("expected item removed at negative quantity")
	}

	// Removing an id that is no longer present is a no-op, not an error.
	if err := store.Remove(ctx, mug().ID); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &stubRecordStore{})
	ctx := context.Background()

	if err := store.Add(ctx, shirt(), 1); err != nil {
		t.Fatalf("add shirt: %v", err)
	}
	if err := store.Add(ctx, mug(), 1); err != nil {
		t.Fatalf("add mug: %v", err)
	}
	if err := store.Add(ctx, shirt(), 1); err != nil {
		t.Fatalf("increment shirt: %v", err)
	}

	items := store.Items()
	if len(items) != 2 || items[0].Product.ID != shirt().ID || items[1].Product.ID != mug().ID {
		t.Fatalf("expected insertion order shirt,mug; got %+v", items)
	}
}

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	records := &stubRecordStore{}
	store := newTestStore(t, records)
	ctx := context.Background()

	if err := store.Add(ctx, mug(), 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	records.saveErr = errors.New("disk full")
	if err := store.Add(ctx, shirt(), 1); err == nil {
		t.Fatal("expected write-through failure to surface")
	}
	if store.Count() != 1 {
		t.Fatalf("failed mutation must be all-or-nothing, count=%d", store.Count())
	}
}

func TestClearThenReloadYieldsEmptyCart(t *testing.T) {
	t.Parallel()

	records := &stubRecordStore{}
	store := newTestStore(t, records)
	ctx := context.Background()

	if err := store.Add(ctx, mug(), 4); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	reloaded := newTestStore(t, records)
	if reloaded.Count() != 0 {
		t.Fatalf("expected empty cart after reload, count=%d", reloaded.Count())
	}
}

func TestLoadSkipsCorruptRecords(t *testing.T) {
	t.Parallel()

	records := &stubRecordStore{cart: []storage.CartItem{
		{ProductID: 1, Name: "Mug", Price: "12.50", Quantity: 2},
		{ProductID: 2, Name: "Bad", Price: "not-a-price", Quantity: 1},
		{ProductID: 3, Name: "Zero", Price: "5.00", Quantity: 0},
	}}
	store := newTestStore(t, records)

	items := store.Items()
	if len(items) != 1 || items[0].Product.ID != 1 {
		t.Fatalf("expected only the valid record to survive, got %+v", items)
	}
}
