// Package maintenance runs the scheduled housekeeping jobs: pruning
// stale cache metadata and retrying cover backfills for books still
// showing a placeholder. Jobs take a Redis lock first so only one
// instance of the service runs them.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"bookvault/internal/common/logging"
	"bookvault/internal/locks"
	"bookvault/internal/storage"
)

type Scheduler struct {
	cron     *cron.Cron
	store    storage.Storage
	locks    *locks.Manager // nil skips locking (single instance)
	logger   logging.Logger
	staleAge time.Duration
}

type Options struct {
	Store    storage.Storage
	Locks    *locks.Manager
	Logger   logging.Logger
	StaleAge time.Duration
	// Schedule is a cron expression; all jobs share it.
	Schedule string
	// RetryCovers re-resolves covers for books without a stored image.
	// Optional.
	RetryCovers func(ctx context.Context)
}

func NewScheduler(opts Options) (*Scheduler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	staleAge := opts.StaleAge
	if staleAge <= 0 {
		staleAge = 30 * 24 * time.Hour
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	s := &Scheduler{
		cron:     cron.New(),
		store:    opts.Store,
		locks:    opts.Locks,
		logger:   logger,
		staleAge: staleAge,
	}

	if _, err := s.cron.AddFunc(schedule, s.pruneStaleCache); err != nil {
		return nil, err
	}
	if opts.RetryCovers != nil {
		retry := opts.RetryCovers
		if _, err := s.cron.AddFunc(schedule, func() {
			s.withLock("cover-retry", retry)
		}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Maintenance scheduler started")
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler stopped")
}

func (s *Scheduler) pruneStaleCache() {
	s.withLock("prune-stale-cache", func(ctx context.Context) {
		before := time.Now().UTC().Add(-s.staleAge)
		deleted, err := s.store.DeleteStaleCachedBooks(ctx, before)
		if err != nil {
			s.logger.Error("Stale cache prune failed", err)
			return
		}
		s.logger.Info("Stale cache pruned",
			logging.Int("deleted", int(deleted)),
			logging.String("before", before.Format(time.RFC3339)),
		)
	})
}

// withLock runs job under the named maintenance lock. When another
// instance holds it the job is skipped, not queued.
func (s *Scheduler) withLock(name string, job func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if s.locks != nil {
		lock, err := s.locks.AcquireMaintenanceLock(ctx, name)
		if err != nil {
			s.logger.Warn("Maintenance lock error",
				logging.String("job", name),
				logging.String("error", err.Error()),
			)
			return
		}
		if lock == nil {
			s.logger.Debug("Maintenance job already running elsewhere",
				logging.String("job", name),
			)
			return
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	job(ctx)
}
