package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	cause := errors.New("provider down")
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	config := fastRetryConfig()
	config.RetryableErrors = func(err error) bool { return false }

	cause := errors.New("404 not found")
	calls := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		calls++
		return cause
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, fastRetryConfig(), func() error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
