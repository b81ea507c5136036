// Package locks provides distributed locking on Redis via the Redlock
// algorithm from go-redsync/redsync/v4. The book service uses locks to
// dedupe background persistence of provider results and to keep
// maintenance jobs single-flight across instances.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"bookvault/internal/common/errors"
	"bookvault/internal/redis"
)

// Lock is a held distributed lock.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Manager hands out Redlock mutexes backed by a single Redis instance.
type Manager struct {
	redsync *redsync.Redsync
}

func NewManager(redisClient *redis.Client) (*Manager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	pool := goredis.NewPool(redisClient.Underlying())
	return &Manager{redsync: redsync.New(pool)}, nil
}

type redsyncLock struct {
	mutex *redsync.Mutex
	key   string
}

func (l *redsyncLock) Key() string { return l.key }

func (l *redsyncLock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return errors.CacheError("failed to release lock", err)
	}
	if !ok {
		return errors.CacheError("lock was not held at release", nil)
	}
	return nil
}

// TryAcquire attempts a single non-blocking acquisition. It returns
// (nil, nil) when another holder owns the lock, which callers treat as
// "someone else is already doing this work".
func (m *Manager) TryAcquire(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := m.redsync.NewMutex(
		fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, nil
		}
		return nil, errors.CacheError("failed to acquire lock", err)
	}

	return &redsyncLock{mutex: mutex, key: key}, nil
}

func isContention(err error) bool {
	if stderrors.Is(err, redsync.ErrFailed) {
		return true
	}
	var taken *redsync.ErrTaken
	return stderrors.As(err, &taken)
}

// AcquirePersistLock guards the background persistence of one book.
func (m *Manager) AcquirePersistLock(ctx context.Context, bookID string) (Lock, error) {
	return m.TryAcquire(ctx, "persist:"+bookID, 30*time.Second)
}

// AcquireMaintenanceLock keeps a scheduled job single-flight.
func (m *Manager) AcquireMaintenanceLock(ctx context.Context, job string) (Lock, error) {
	return m.TryAcquire(ctx, "maintenance:"+job, 5*time.Minute)
}
