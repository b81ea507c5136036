package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/redis"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	t.Run("get miss", func(t *testing.T) {
		_, found := c.Get(ctx, "missing")
		assert.False(t, found)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
		val, found := c.Get(ctx, "k")
		require.True(t, found)
		assert.Equal(t, "v", val)
	})

	t.Run("setnx respects existing", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "nx", "first", time.Minute))
		ok, err := c.SetNX(ctx, "nx", "second", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "d", "v", time.Minute))
		require.NoError(t, c.Delete(ctx, "d"))
		_, found := c.Get(ctx, "d")
		assert.False(t, found)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Clear(ctx))
		exists, _ := c.Exists(ctx, "a")
		assert.False(t, exists)
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)
	c := NewRedisCache(client, "book:")

	t.Run("set and get applies prefix", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "id1", map[string]string{"title": "Dune"}, time.Minute))

		assert.True(t, mr.Exists("book:id1"))

		val, found := c.Get(ctx, "id1")
		require.True(t, found)
		m, ok := val.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Dune", m["title"])
	})

	t.Run("get raw", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "raw", "hello", time.Minute))
		data, found := c.GetRaw(ctx, "raw")
		require.True(t, found)
		assert.JSONEq(t, `"hello"`, string(data))
	})

	t.Run("clear only removes prefixed keys", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "other:key", "keep", 0))
		require.NoError(t, c.Set(ctx, "gone", "x", time.Minute))

		require.NoError(t, c.Clear(ctx))

		assert.False(t, mr.Exists("book:gone"))
		assert.True(t, mr.Exists("other:key"))
	})

	t.Run("miss after expiry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "ttl", "v", time.Minute))
		mr.FastForward(2 * time.Minute)
		_, found := c.Get(ctx, "ttl")
		assert.False(t, found)
	})
}

func TestTwoTierCache(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)

	t.Run("l2 hit populates l1", func(t *testing.T) {
		tiered := NewTwoTierCache(time.Minute, time.Minute, client, "tt:")

		// Write directly to L2, bypassing L1
		require.NoError(t, tiered.l2.Set(ctx, "k", "v", time.Hour))

		val, found := tiered.Get(ctx, "k")
		require.True(t, found)
		assert.Equal(t, "v", val)

		// L1 now holds the value even if L2 goes away
		require.NoError(t, tiered.l2.Delete(ctx, "k"))
		_, found = tiered.l1.Get(ctx, "k")
		assert.True(t, found)
	})

	t.Run("set writes both tiers", func(t *testing.T) {
		tiered := NewTwoTierCache(time.Minute, time.Minute, client, "tt2:")
		require.NoError(t, tiered.Set(ctx, "k", "v", time.Hour))

		_, found := tiered.l1.Get(ctx, "k")
		assert.True(t, found)
		assert.True(t, mr.Exists("tt2:k"))
	})

	t.Run("delete removes both tiers", func(t *testing.T) {
		tiered := NewTwoTierCache(time.Minute, time.Minute, client, "tt3:")
		require.NoError(t, tiered.Set(ctx, "k", "v", time.Hour))
		require.NoError(t, tiered.Delete(ctx, "k"))

		_, found := tiered.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("setnx", func(t *testing.T) {
		tiered := NewTwoTierCache(time.Minute, time.Minute, client, "tt4:")

		ok, err := tiered.SetNX(ctx, "k", "first", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tiered.SetNX(ctx, "k", "second", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
