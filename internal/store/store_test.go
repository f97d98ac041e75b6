package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

func exerciseStore(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	key := store.Key("checkout", "tab-1", "session")

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, key, "gid://shopify/Checkout/1"))
	value, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Checkout/1", value)

	// last writer wins
	require.NoError(t, s.Set(ctx, key, "gid://shopify/Checkout/2"))
	value, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Checkout/2", value)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, key), "deleting a missing key is not an error")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, store.NewMemory())
}

func TestRedisStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := store.NewRedis(client, "storefront")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	assert.True(t, srv.Exists("storefront:k"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	exerciseStore(t, store.NewPostgres(pool))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	type entry struct {
		Stage string `json:"stage"`
	}

	require.NoError(t, store.SetJSON(ctx, s, "tracking:AWB1", entry{Stage: "DELIVERED"}))

	var got entry
	require.NoError(t, store.GetJSON(ctx, s, "tracking:AWB1", &got))
	assert.Equal(t, "DELIVERED", got.Stage)

	require.NoError(t, s.Set(ctx, "broken", "{not json"))
	assert.Error(t, store.GetJSON(ctx, s, "broken", &got))
	assert.ErrorIs(t, store.GetJSON(ctx, s, "missing", &got), store.ErrNotFound)
}
