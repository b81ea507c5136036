package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("type and message only", func(t *testing.T) {
		err := NotFoundError("book")
		assert.Equal(t, "not_found: book not found", err.Error())
	})

	t.Run("includes code and cause", func(t *testing.T) {
		err := ProviderError("google books request failed", errors.New("connection refused")).WithCode("GB_FETCH")
		assert.Contains(t, err.Error(), "provider: google books request failed")
		assert.Contains(t, err.Error(), "code=GB_FETCH")
		assert.Contains(t, err.Error(), "cause=connection refused")
	})

	t.Run("includes context", func(t *testing.T) {
		err := StorageError("upsert failed", nil).WithContext("isbn", "9780553293357")
		assert.Contains(t, err.Error(), "isbn=9780553293357")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := CacheError("redis get failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", NotFoundError("book"), ErrTypeNotFound, true},
		{"different type", CacheError("boom", nil), ErrTypeNotFound, false},
		{"wrapped app error", fmt.Errorf("lookup: %w", NotFoundError("book")), ErrTypeNotFound, true},
		{"plain error", errors.New("boom"), ErrTypeNotFound, false},
		{"nil error", nil, ErrTypeNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundError("book")))
	assert.True(t, IsNotFound(fmt.Errorf("cascade: %w", NotFoundError("book"))))
	assert.False(t, IsNotFound(ProviderError("boom", nil)))
	assert.False(t, IsNotFound(nil))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeProvider, GetType(ProviderError("boom", nil)))
	assert.Equal(t, ErrTypeStorage, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
