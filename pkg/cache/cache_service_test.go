package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)

	t.Run("miss", func(t *testing.T) {
		var p payload
		assert.ErrorIs(t, c.Get(ctx, "absent", &p), ErrCacheMiss)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", payload{Name: "a", Count: 2}, time.Minute))
		assert.True(t, mr.Exists(keyPrefix+"k"))

		var p payload
		require.NoError(t, c.Get(ctx, "k", &p))
		assert.Equal(t, payload{Name: "a", Count: 2}, p)

		require.NoError(t, c.Delete(ctx, "k"))
		assert.ErrorIs(t, c.Get(ctx, "k", &p), ErrCacheMiss)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "ttl", payload{Name: "b"}, time.Second))
		mr.FastForward(2 * time.Second)

		var p payload
		assert.ErrorIs(t, c.Get(ctx, "ttl", &p), ErrCacheMiss)
	})

	t.Run("corrupt value reads as miss", func(t *testing.T) {
		require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

		var p payload
		assert.ErrorIs(t, c.Get(ctx, "bad", &p), ErrCacheMiss)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		assert.Error(t, c.Set(ctx, "forever", payload{}, 0))
		assert.False(t, mr.Exists(keyPrefix+"forever"))
	})
}
