package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{Level: level, Output: buf})
	require.NoError(t, err)
	return logger, buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newTestLogger(t, DebugLevel)

	logger.Debug("cache miss", String("tier", "memory"))
	entry := decodeLine(t, buf)

	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "cache miss", entry["msg"])
	assert.Equal(t, "memory", entry["tier"])
}

func TestZapAdapter_LevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, WarnLevel)

	logger.Info("should be suppressed")
	assert.Empty(t, buf.String())

	logger.Warn("redis unavailable")
	assert.Contains(t, buf.String(), "redis unavailable")
}

func TestZapAdapter_ErrorField(t *testing.T) {
	logger, buf := newTestLogger(t, InfoLevel)

	logger.Error("provider fetch failed", errors.New("connection refused"), String("provider", "googlebooks"))
	entry := decodeLine(t, buf)

	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "googlebooks", entry["provider"])
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newTestLogger(t, InfoLevel)

	child := logger.WithFields(String("component", "tiered_cache"))
	child.Info("tier hit")

	entry := decodeLine(t, buf)
	assert.Equal(t, "tiered_cache", entry["component"])
}

func TestZapAdapter_WithContext(t *testing.T) {
	logger, buf := newTestLogger(t, InfoLevel)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	logger.WithContext(ctx).Info("lookup")

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, InfoLevel, ParseLevel("garbage"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}
