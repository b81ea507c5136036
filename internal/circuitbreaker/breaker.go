// Package circuitbreaker wraps Sony's gobreaker for calls to external
// book providers. A lookup that misses (not found) is a valid answer
// and never trips the breaker; only transport and server failures count.
package circuitbreaker

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
)

type Config struct {
	// MaxFailures is the consecutive-failure count that opens the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before half-open probes.
	Timeout time.Duration
	// MaxConcurrentRequests bounds probes while half-open.
	MaxConcurrentRequests int
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 2,
	}
}

func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// ProviderConfig tolerates the occasional provider hiccup but fails fast
// once a provider is clearly down.
var ProviderConfig = Config{
	MaxFailures:           3,
	Timeout:               30 * time.Second,
	MaxConcurrentRequests: 2,
}

// Breaker guards one named external dependency.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

func New(name string, config Config, logger logging.Logger) *Breaker {
	if err := config.Validate(); err != nil {
		if logger != nil {
			logger.Warn("Invalid circuit breaker config, using defaults",
				logging.String("breaker", name),
				logging.String("error", err.Error()),
			)
		}
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A provider answering "no such book" is healthy.
			return errors.IsNotFound(err) || errors.IsType(err, errors.ErrTypeValidation)
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs fn under the breaker and returns its result.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.breaker.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.ProviderError(fmt.Sprintf("circuit breaker %q is open", b.name), err)
	}
	return result, err
}

// IsOpen reports whether the circuit is currently rejecting calls.
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
