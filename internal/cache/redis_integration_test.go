//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBackend_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	backend, err := NewRedisBackend(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	key := TaskKey(uuid.New())
	t.Cleanup(func() { _ = backend.Delete(ctx, key) })

	_, ok, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, key, []byte(`{"title":"x"}`), time.Minute))
	got, ok, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"title":"x"}`, string(got))

	require.NoError(t, backend.Delete(ctx, key))
	_, ok, err = backend.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
