package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/redis"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	manager, err := NewManager(client)
	require.NoError(t, err)
	return manager
}

func TestTryAcquireAndRelease(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	lock, err := manager.TryAcquire(ctx, "persist:book-1", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "persist:book-1", lock.Key())

	require.NoError(t, lock.Release(ctx))

	// Released lock can be acquired again.
	lock, err = manager.TryAcquire(ctx, "persist:book-1", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.NoError(t, lock.Release(ctx))
}

func TestTryAcquireContention(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first, err := manager.TryAcquire(ctx, "persist:book-1", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := manager.TryAcquire(ctx, "persist:book-1", 10*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second, "held lock reports contention, not error")

	require.NoError(t, first.Release(ctx))
}

func TestDistinctKeysDoNotContend(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	a, err := manager.AcquirePersistLock(ctx, "book-a")
	require.NoError(t, err)
	require.NotNil(t, a)

	b, err := manager.AcquirePersistLock(ctx, "book-b")
	require.NoError(t, err)
	require.NotNil(t, b)

	require.NoError(t, a.Release(ctx))
	require.NoError(t, b.Release(ctx))
}
