package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("COUNSEL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COUNSEL_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := Open(ctx, Options{Addr: addr, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := "qa:test:" + uuid.NewString()

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, []byte("answer"), time.Minute))
	data, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("answer"), data)
}

func TestStore_Expiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := "qa:test:" + uuid.NewString()

	require.NoError(t, store.Set(ctx, key, []byte("short"), 100*time.Millisecond))
	time.Sleep(300 * time.Millisecond)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
