package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/common/errors"
)

func TestExecutePassesThroughResult(t *testing.T) {
	breaker := New("test", DefaultConfig(), nil)

	result, err := breaker.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := New("test", Config{
		MaxFailures:           3,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("provider unreachable")
		})
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err := breaker.Execute(func() (interface{}, error) {
		return "should not run", nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProvider))
}

func TestNotFoundDoesNotTrip(t *testing.T) {
	breaker := New("test", Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)

	for i := 0; i < 10; i++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, errors.NotFoundError("book")
		})
		require.Error(t, err)
	}
	assert.False(t, breaker.IsOpen(), "not-found answers are healthy responses")
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	breaker := New("test", Config{}, nil)

	result, err := breaker.Execute(func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
