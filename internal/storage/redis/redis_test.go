package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chygoz/storefront/internal/cartstore"
	"github.com/chygoz/storefront/internal/domain"
	"github.com/chygoz/storefront/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

func setupTestRedis(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, 24*time.Hour), mr
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestStorage_Get_Success(t *testing.T) {
	s, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart-S1", `[{"id":"p1"}]`))

	v, found, err := s.Get(context.Background(), "cart-S1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"p1"}]`, string(v))
}

func TestStorage_Get_Missing(t *testing.T) {
	s, _ := setupTestRedis(t)

	v, found, err := s.Get(context.Background(), "cart-none")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestStorage_Get_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "cart-S1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")
}

// ---------------------------------------------------------------------------
// Set / Remove
// ---------------------------------------------------------------------------

func TestStorage_Set_AppliesTTL(t *testing.T) {
	s, mr := setupTestRedis(t)

	require.NoError(t, s.Set(context.Background(), "cart-S1", []byte(`[]`)))

	got, err := mr.Get("cart-S1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)
	assert.Equal(t, 24*time.Hour, mr.TTL("cart-S1"))
}

func TestStorage_Set_Expires(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart-S1", []byte(`[]`)))
	mr.FastForward(25 * time.Hour)

	_, found, err := s.Get(ctx, "cart-S1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorage_Remove(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart-S1", []byte(`[]`)))
	require.NoError(t, s.Remove(ctx, "cart-S1"))
	assert.False(t, mr.Exists("cart-S1"))

	// removing again is fine
	require.NoError(t, s.Remove(ctx, "cart-S1"))
}

// ---------------------------------------------------------------------------
// Cart store on Redis
// ---------------------------------------------------------------------------

func TestCartStoreOnRedis_SessionScopedRecord(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()
	scoped := storage.Namespace(storage.SessionPrefix("sess-1"), s)

	store := cartstore.New(ctx, "S1", scoped, slogDiscard())
	require.NoError(t, store.AddItem(ctx, domain.CartItem{ID: "p1", Quantity: 2, StoreID: "S1"}))
	assert.True(t, mr.Exists("session:sess-1:cart-S1"))

	require.NoError(t, store.ClearCart(ctx))
	assert.False(t, mr.Exists("session:sess-1:cart-S1"))
}
