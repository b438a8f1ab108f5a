package cartstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chygoz/storefront/internal/domain"
	"github.com/chygoz/storefront/internal/storage/memory"
)

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func item(id string, price int64, qty int, storeID string) domain.CartItem {
	return domain.CartItem{
		ID:       id,
		Name:     "Item " + id,
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
		StoreID:  storeID,
	}
}

func newTestStore(t *testing.T, storeID string) (*Store, *memory.Storage) {
	t.Helper()
	st := memory.New()
	return New(context.Background(), storeID, st, testLogger()), st
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockStorage) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockStorage) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// ============================================================================
// End-to-end flows
// ============================================================================

func TestScenario_AddMergeSwitchAndRemove(t *testing.T) {
	ctx := context.Background()
	s, st := newTestStore(t, "S1")

	// 1. Add two shirts.
	require.NoError(t, s.AddItem(ctx, domain.CartItem{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(20), Quantity: 2, StoreID: "S1"}))
	assert.Equal(t, 2, s.TotalItems())
	assert.True(t, decimal.NewFromInt(40).Equal(s.Subtotal()))

	// 2. Add one more of the same shirt.
	require.NoError(t, s.AddItem(ctx, domain.CartItem{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(20), Quantity: 1, StoreID: "S1"}))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, decimal.NewFromInt(60).Equal(s.Subtotal()))

	// 3. An item from another store replaces the cart.
	require.NoError(t, s.AddItem(ctx, item("p9", 10, 1, "S2")))
	items = s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p9", items[0].ID)
	assert.Equal(t, 1, s.TotalItems())
	assert.True(t, decimal.NewFromInt(10).Equal(s.Subtotal()))
	assert.Equal(t, "S2", s.StoreID())

	// 4. Quantity zero empties the cart and deletes the record.
	require.NoError(t, s.UpdateQuantity(ctx, "p9", 0))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.TotalItems())
	assert.True(t, s.Subtotal().IsZero())
	_, found, err := st.Get(ctx, Key("S1"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, st.Len())
}

func TestRemoveItem_UnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "S1")
	require.NoError(t, s.AddItem(ctx, item("p1", 5, 2, "S1")))

	before := s.Items()
	require.NoError(t, s.RemoveItem(ctx, "nonexistent"))
	assert.Equal(t, before, s.Items())
}

func TestRemoveItem_OnEmptyCart(t *testing.T) {
	s, st := newTestStore(t, "S1")
	require.NoError(t, s.RemoveItem(context.Background(), "nonexistent"))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, st.Len())
}

// ============================================================================
// Properties
// ============================================================================

func TestAddItem_UniqueByID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "S1")

	adds := []domain.CartItem{
		item("a", 1, 1, "S1"),
		item("b", 2, 2, "S1"),
		item("a", 1, 3, "S1"),
		item("c", 3, 1, "S1"),
		item("b", 2, 1, "S1"),
	}
	for _, it := range adds {
		require.NoError(t, s.AddItem(ctx, it))
	}

	items := s.Items()
	require.Len(t, items, 3)
	// insertion order is preserved
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 3, items[1].Quantity)
	assert.Equal(t, 1, items[2].Quantity)
}

func TestAddItem_TenantSwitchDiscardsPreviousStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "A")
	require.NoError(t, s.AddItem(ctx, item("a1", 1, 1, "A")))
	require.NoError(t, s.AddItem(ctx, item("a2", 1, 4, "A")))

	b := item("b1", 7, 2, "B")
	require.NoError(t, s.AddItem(ctx, b))

	assert.Equal(t, []domain.CartItem{b}, s.Items())
}

func TestAddItem_SameIDFromOtherStoreStillSwitches(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "A")
	require.NoError(t, s.AddItem(ctx, item("p1", 1, 5, "A")))
	require.NoError(t, s.AddItem(ctx, item("p1", 1, 1, "B")))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "B", items[0].StoreID)
}

func TestAddItem_AcceptsInvalidQuantityAsGiven(t *testing.T) {
	s, _ := newTestStore(t, "S1")
	require.NoError(t, s.AddItem(context.Background(), item("p1", 3, 0, "S1")))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Quantity)
}

func TestUpdateQuantity_FloorRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -50} {
		t.Run(fmt.Sprintf("q=%d", q), func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestStore(t, "S1")
			require.NoError(t, s.AddItem(ctx, item("keep", 1, 1, "S1")))
			require.NoError(t, s.AddItem(ctx, item("drop", 1, 3, "S1")))

			require.NoError(t, s.UpdateQuantity(ctx, "drop", q))

			items := s.Items()
			require.Len(t, items, 1)
			assert.Equal(t, "keep", items[0].ID)
		})
	}
}

func TestUpdateQuantity_SetsValue(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "S1")
	require.NoError(t, s.AddItem(ctx, item("p1", 4, 1, "S1")))

	require.NoError(t, s.UpdateQuantity(ctx, "p1", 6))
	assert.Equal(t, 6, s.TotalItems())
	assert.True(t, decimal.NewFromInt(24).Equal(s.Subtotal()))

	require.NoError(t, s.UpdateQuantity(ctx, "missing", 9))
	assert.Equal(t, 6, s.TotalItems())
}

func TestAggregates_RecomputedAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "S1")

	steps := []func() error{
		func() error { return s.AddItem(ctx, item("a", 3, 2, "S1")) },
		func() error { return s.AddItem(ctx, item("b", 5, 1, "S1")) },
		func() error { return s.UpdateQuantity(ctx, "a", 7) },
		func() error { return s.RemoveItem(ctx, "b") },
		func() error { return s.AddItem(ctx, item("a", 3, 1, "S1")) },
	}
	for _, step := range steps {
		require.NoError(t, step())

		items := s.Items()
		wantCount := 0
		wantTotal := decimal.Zero
		for _, it := range items {
			wantCount += it.Quantity
			wantTotal = wantTotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		assert.Equal(t, wantCount, s.TotalItems())
		assert.True(t, wantTotal.Equal(s.Subtotal()))

		snap := s.Snapshot()
		assert.Equal(t, wantCount, snap.TotalItems)
		assert.True(t, wantTotal.Equal(snap.Subtotal))
	}
}

func TestPersistence_RoundTripAfterEachMutation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	s := New(ctx, "S1", st, testLogger())

	steps := []func() error{
		func() error { return s.AddItem(ctx, item("a", 3, 2, "S1")) },
		func() error { return s.AddItem(ctx, item("b", 5, 1, "S1")) },
		func() error { return s.UpdateQuantity(ctx, "a", 4) },
		func() error { return s.RemoveItem(ctx, "a") },
	}
	for _, step := range steps {
		require.NoError(t, step())

		reloaded := New(ctx, "S1", st, testLogger())
		want := s.Items()
		got := reloaded.Items()
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Quantity, got[i].Quantity)
			assert.True(t, want[i].Price.Equal(got[i].Price))
		}
	}
}

func TestClearCart_DeletesRecord(t *testing.T) {
	ctx := context.Background()
	s, st := newTestStore(t, "S1")
	require.NoError(t, s.AddItem(ctx, item("a", 1, 1, "S1")))
	assert.Equal(t, 1, st.Len())

	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, st.Len())
}

func TestRemoveLastItem_DeletesRecord(t *testing.T) {
	ctx := context.Background()
	s, st := newTestStore(t, "S1")
	require.NoError(t, s.AddItem(ctx, item("a", 1, 1, "S1")))
	require.NoError(t, s.RemoveItem(ctx, "a"))

	_, found, err := st.Get(ctx, Key("S1"))
	require.NoError(t, err)
	assert.False(t, found, "empty cart must not leave an empty record behind")
}

func TestStoreID_FallsBackToInitialTenant(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "S1")
	assert.Equal(t, "S1", s.StoreID())

	require.NoError(t, s.AddItem(ctx, item("x", 1, 1, "S2")))
	assert.Equal(t, "S2", s.StoreID())

	require.NoError(t, s.ClearCart(ctx))
	assert.Equal(t, "S1", s.StoreID())
}

// ============================================================================
// Hydration
// ============================================================================

func TestNew_HydratesFromRecord(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Set(ctx, "cart-S1", []byte(`[{"id":"p1","name":"Shirt","price":20,"image":"","quantity":2,"storeId":"S1"}]`)))

	s := New(ctx, "S1", st, testLogger())
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, 2, s.TotalItems())
	assert.True(t, decimal.NewFromInt(40).Equal(s.Subtotal()))
}

func TestNew_CorruptRecordStartsEmpty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Set(ctx, "cart-S1", []byte(`{{not-json`)))

	s := New(ctx, "S1", st, testLogger())
	assert.Empty(t, s.Items())
	assert.Equal(t, "S1", s.StoreID())
}

func TestNew_ReadErrorStartsEmpty(t *testing.T) {
	ctx := context.Background()
	st := new(mockStorage)
	st.On("Get", ctx, "cart-S1").Return(nil, false, errors.New("connection refused"))

	s := New(ctx, "S1", st, testLogger())
	assert.Empty(t, s.Items())
	st.AssertExpectations(t)
}

func TestNew_OtherTenantRecordIgnored(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Set(ctx, "cart-S2", []byte(`[{"id":"p1","price":1,"quantity":1,"storeId":"S2"}]`)))

	s := New(ctx, "S1", st, testLogger())
	assert.Empty(t, s.Items())
}

// ============================================================================
// Persistence failures
// ============================================================================

func TestAddItem_WriteFailureSurfacedStateKept(t *testing.T) {
	ctx := context.Background()
	st := new(mockStorage)
	st.On("Get", ctx, "cart-S1").Return(nil, false, nil)
	st.On("Set", ctx, "cart-S1", mock.Anything).Return(errors.New("quota exceeded"))

	s := New(ctx, "S1", st, testLogger())
	err := s.AddItem(ctx, item("p1", 1, 1, "S1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist cart")
	assert.Len(t, s.Items(), 1)
	st.AssertExpectations(t)
}

func TestClearCart_RemoveFailureSurfaced(t *testing.T) {
	ctx := context.Background()
	st := new(mockStorage)
	st.On("Get", ctx, "cart-S1").Return(nil, false, nil)
	st.On("Remove", ctx, "cart-S1").Return(errors.New("timeout"))

	s := New(ctx, "S1", st, testLogger())
	err := s.ClearCart(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	st.AssertExpectations(t)
}
