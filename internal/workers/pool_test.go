package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasksExecute(t *testing.T) {
	pool := NewPool(2, 10, nil)

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := pool.Submit(Task{Name: "increment", Run: func(ctx context.Context) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		}})
		require.True(t, ok)
	}
	wg.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
	require.NoError(t, pool.Stop(context.Background()))
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, nil)
	defer pool.Stop(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})

	require.True(t, pool.Submit(Task{Name: "blocker", Run: func(ctx context.Context) {
		close(started)
		<-block
	}}))
	<-started

	// Fill the single queue slot, then one more must drop.
	require.True(t, pool.Submit(Task{Name: "queued", Run: func(ctx context.Context) {}}))

	dropped := false
	for i := 0; i < 3; i++ {
		if !pool.Submit(Task{Name: "overflow", Run: func(ctx context.Context) {}}) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "full queue rejects instead of blocking")
	close(block)
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	pool := NewPool(1, 10, nil)

	var count int32
	for i := 0; i < 5; i++ {
		pool.Submit(Task{Name: "work", Run: func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&count, 1)
		}})
	}

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&count), "queued tasks finish before Stop returns")
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 10, nil)
	require.NoError(t, pool.Stop(context.Background()))

	assert.False(t, pool.Submit(Task{Name: "late", Run: func(ctx context.Context) {}}))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	pool := NewPool(1, 10, nil)

	pool.Submit(Task{Name: "panics", Run: func(ctx context.Context) {
		panic("boom")
	}})

	done := make(chan struct{})
	require.Eventually(t, func() bool {
		return pool.Submit(Task{Name: "after", Run: func(ctx context.Context) {
			close(done)
		}})
	}, time.Second, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	require.NoError(t, pool.Stop(context.Background()))
}
