package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "user-1:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "user-1:abc", []byte(`{"success":true}`), time.Minute))
	assert.True(t, mr.Exists("idempotency:user-1:abc"))

	body, ok, err := store.Get(ctx, "user-1:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"success":true}`, string(body))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "user-1:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisIdempotencyStore_ConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	store := NewRedisIdempotencyStore(client)
	_, ok, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
