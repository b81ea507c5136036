// Package workers runs background tasks on a bounded pool. Submission
// never blocks the request path: when the queue is full the task is
// dropped with a warning, since every task here is a best-effort
// write-behind that a later request can redo.
package workers

import (
	"context"
	"sync"

	"bookvault/internal/common/logging"
)

// Task is a unit of background work. The context is the pool's
// lifecycle context, canceled during shutdown.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

type Pool struct {
	queue    chan Task
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logging.Logger
	stopOnce sync.Once

	mu      sync.RWMutex
	stopped bool
}

func NewPool(workerCount, queueSize int, logger logging.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	for i := 0; i < workerCount; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Background task panicked", nil,
				logging.String("task", task.Name),
				logging.Any("panic", r),
			)
		}
	}()
	task.Run(p.ctx)
}

// Submit enqueues a task without blocking. Returns false when the
// queue is full or the pool is stopped.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.queue <- task:
		return true
	default:
		p.logger.Warn("Background queue full, dropping task",
			logging.String("task", task.Name),
		)
		return false
	}
}

// Stop closes the queue and waits for in-flight tasks to finish or ctx
// to expire, whichever comes first. Tasks started before Stop see their
// context canceled once ctx expires.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.queue)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
