package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewClient(&Config{Address: "127.0.0.1:1"})
		assert.Error(t, err)
	})

	t.Run("connects and pings", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		assert.NoError(t, client.Health())
	})
}

func TestClient_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	t.Run("string round trip", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k", "v", 0))
		val, err := client.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)
	})

	t.Run("struct round trip via JSON", func(t *testing.T) {
		type rec struct {
			Title string `json:"title"`
		}
		require.NoError(t, client.Set(ctx, "book", rec{Title: "Foundation"}, 0))

		var got rec
		require.NoError(t, client.GetJSON(ctx, "book", &got))
		assert.Equal(t, "Foundation", got.Title)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := client.Get(ctx, "nope")
		assert.Error(t, err)
	})
}

func TestClient_SetNX(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "once", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "once", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := client.Get(ctx, "once")
	require.NoError(t, err)
	assert.Equal(t, "a", val)
}

func TestClient_DeleteExists(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	exists, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.Delete(ctx, "k"))

	exists, err = client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := client.Get(ctx, "k")
	assert.Error(t, err)
}

func TestClient_PubSub(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "events")
	t.Cleanup(func() { _ = sub.Close() })

	// Wait for subscription before publishing
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, "events", map[string]string{"book_id": "abc"}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "abc")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
	}
}
