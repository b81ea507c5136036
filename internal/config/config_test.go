package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, "./covers", cfg.CoverCacheDir)
	assert.Equal(t, "/static/placeholder.jpg", cfg.PlaceholderImageURL)
	assert.False(t, cfg.S3Enabled)
	assert.True(t, cfg.MaintenanceEnabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_BUCKET", "bookvault-covers")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.True(t, cfg.S3Enabled)
	assert.Equal(t, "bookvault-covers", cfg.S3Bucket)
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = "notaport"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid database type", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseType = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("postgres requires host", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseType = "postgres"
		cfg.PostgresHost = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("s3 enabled requires bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.S3Enabled = true
		cfg.S3Bucket = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid redis db", func(t *testing.T) {
		cfg := validConfig()
		cfg.RedisDB = "42"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.RedisCacheTTL = "soon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid worker count", func(t *testing.T) {
		cfg := validConfig()
		cfg.WorkerCount = "0"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid rate limit", func(t *testing.T) {
		cfg := validConfig()
		cfg.ProviderRateLimit = "-1"
		assert.Error(t, cfg.Validate())
	})
}

func TestParsedAccessors(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Minute, cfg.MemoryTTL())
	assert.Equal(t, 24*time.Hour, cfg.RedisTTL())
	assert.Equal(t, 720*time.Hour, cfg.StaleAge())
	assert.Equal(t, 4, cfg.Workers())
	assert.Equal(t, 256, cfg.QueueSize())
	assert.Equal(t, 1.0, cfg.ProviderRPS())
	assert.Equal(t, 400, cfg.MinHighResWidth())
}
