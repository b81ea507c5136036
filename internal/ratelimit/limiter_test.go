package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurst(t *testing.T) {
	registry := NewRegistry(1, 2)

	assert.True(t, registry.Allow("googlebooks"))
	assert.True(t, registry.Allow("googlebooks"))
	assert.False(t, registry.Allow("googlebooks"), "burst exhausted")
}

func TestProvidersHaveIndependentBuckets(t *testing.T) {
	registry := NewRegistry(1, 1)

	assert.True(t, registry.Allow("googlebooks"))
	assert.True(t, registry.Allow("openlibrary"), "draining one bucket leaves the other full")
}

func TestSetOverridesRate(t *testing.T) {
	registry := NewRegistry(1, 1)
	registry.Set("googlebooks", 100, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, registry.Allow("googlebooks"))
	}
}

func TestWaitHonorsContext(t *testing.T) {
	registry := NewRegistry(0.001, 1)
	require.True(t, registry.Allow("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := registry.Wait(ctx, "slow")
	assert.Error(t, err, "empty bucket with a tiny deadline times out")
}
