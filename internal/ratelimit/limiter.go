// Package ratelimit throttles outbound provider traffic with
// golang.org/x/time/rate token buckets, one bucket per provider.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"bookvault/internal/common/errors"
)

// Registry hands out one limiter per provider name. All providers share
// the same configured rate unless overridden with Set.
type Registry struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRPS   float64
	defaultBurst int
}

func NewRegistry(rps float64, burst int) *Registry {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		limiters:     make(map[string]*rate.Limiter),
		defaultRPS:   rps,
		defaultBurst: burst,
	}
}

func (r *Registry) limiter(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[name]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(r.defaultRPS), r.defaultBurst)
		r.limiters[name] = limiter
	}
	return limiter
}

// Set overrides the rate for one provider.
func (r *Registry) Set(name string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until the provider's bucket has a token or ctx is done.
func (r *Registry) Wait(ctx context.Context, name string) error {
	if err := r.limiter(name).Wait(ctx); err != nil {
		return errors.TimeoutError("rate limit wait for " + name)
	}
	return nil
}

// Allow reports whether a call may proceed right now without blocking.
func (r *Registry) Allow(name string) bool {
	return r.limiter(name).Allow()
}
