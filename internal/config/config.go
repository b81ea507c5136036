// Package config provides configuration management for the bookvault service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the application fails at startup
// rather than per-request.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./bookvault.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration (distributed cache tier, optional):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Object Storage (cover images, optional):
//   - S3_ENABLED: Enable the S3 cover tier (default: false)
//   - S3_BUCKET: Bucket for cover images (required when enabled)
//   - S3_REGION: AWS region (default: us-east-1)
//   - S3_ENDPOINT: Custom endpoint for S3-compatible stores (optional)
//   - S3_ACCESS_KEY_ID / S3_SECRET_ACCESS_KEY: Static credentials; the
//     default AWS chain is used when empty
//
// Providers:
//   - GOOGLE_BOOKS_API_KEY: API key for Google Books (optional)
//   - PROVIDER_RATE_LIMIT: Requests per second per provider (default: 1)
//
// Covers:
//   - COVER_CACHE_DIR: Local disk cover cache directory (default: ./covers)
//   - PLACEHOLDER_IMAGE_URL: Served when every cover source fails
//     (default: /static/placeholder.jpg)
//   - HIGH_RES_MIN_WIDTH: Minimum pixel width for "high resolution"
//     cover candidates (default: 400)
//
// Cache TTLs and workers:
//   - MEMORY_CACHE_TTL: In-process cache TTL (default: 5m)
//   - REDIS_CACHE_TTL: Redis cache TTL (default: 24h)
//   - WORKER_COUNT: Background worker goroutines (default: 4)
//   - WORKER_QUEUE_SIZE: Background task queue depth (default: 256)
//
// Maintenance:
//   - MAINTENANCE_ENABLED: Enable scheduled maintenance jobs (default: true)
//   - STALE_CACHE_MAX_AGE: Age after which cached book rows are pruned
//     (default: 720h)
//   - MAINTENANCE_SCHEDULE: Cron spec for the prune job (default: "0 3 * * *")
package config

import (
	"fmt"
	"strconv"
	"time"

	"os"
)

// Config holds all configuration values for the bookvault service.
// Load configuration with Load() and call Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration for the distributed cache tier
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Object storage for cover images
	S3Enabled         bool
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// External providers
	GoogleBooksAPIKey string
	ProviderRateLimit string

	// Cover resolution
	CoverCacheDir       string
	PlaceholderImageURL string
	HighResMinWidth     string

	// Cache tiers and background workers
	MemoryCacheTTL  string
	RedisCacheTTL   string
	WorkerCount     string
	WorkerQueueSize string

	// Maintenance jobs
	MaintenanceEnabled  bool
	StaleCacheMaxAge    string
	MaintenanceSchedule string
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults where unset. Call Validate() on the
// result before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./bookvault.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "bookvault"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		S3Enabled:         getBoolEnv("S3_ENABLED", false),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		GoogleBooksAPIKey: getEnv("GOOGLE_BOOKS_API_KEY", ""),
		ProviderRateLimit: getEnv("PROVIDER_RATE_LIMIT", "1"),

		CoverCacheDir:       getEnv("COVER_CACHE_DIR", "./covers"),
		PlaceholderImageURL: getEnv("PLACEHOLDER_IMAGE_URL", "/static/placeholder.jpg"),
		HighResMinWidth:     getEnv("HIGH_RES_MIN_WIDTH", "400"),

		MemoryCacheTTL:  getEnv("MEMORY_CACHE_TTL", "5m"),
		RedisCacheTTL:   getEnv("REDIS_CACHE_TTL", "24h"),
		WorkerCount:     getEnv("WORKER_COUNT", "4"),
		WorkerQueueSize: getEnv("WORKER_QUEUE_SIZE", "256"),

		MaintenanceEnabled:  getBoolEnv("MAINTENANCE_ENABLED", true),
		StaleCacheMaxAge:    getEnv("STALE_CACHE_MAX_AGE", "720h"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 3 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, field formats, and cross-field
// dependencies. Configuration errors are fatal at startup.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.S3Enabled && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED is true")
	}

	if rps, err := strconv.ParseFloat(c.ProviderRateLimit, 64); err != nil || rps <= 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must be a positive number")
	}

	if width, err := strconv.Atoi(c.HighResMinWidth); err != nil || width < 1 {
		return fmt.Errorf("HIGH_RES_MIN_WIDTH must be a positive number")
	}

	for name, value := range map[string]string{
		"MEMORY_CACHE_TTL":    c.MemoryCacheTTL,
		"REDIS_CACHE_TTL":     c.RedisCacheTTL,
		"STALE_CACHE_MAX_AGE": c.StaleCacheMaxAge,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g. '5m', '24h')", name)
		}
	}

	for name, value := range map[string]string{
		"WORKER_COUNT":      c.WorkerCount,
		"WORKER_QUEUE_SIZE": c.WorkerQueueSize,
	} {
		if n, err := strconv.Atoi(value); err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive number", name)
		}
	}

	return nil
}

// MemoryTTL returns the parsed in-process cache TTL.
// Validate must have succeeded before calling the parsed accessors.
func (c *Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.MemoryCacheTTL)
	return d
}

// RedisTTL returns the parsed Redis cache TTL.
func (c *Config) RedisTTL() time.Duration {
	d, _ := time.ParseDuration(c.RedisCacheTTL)
	return d
}

// StaleAge returns the parsed stale cached-book age.
func (c *Config) StaleAge() time.Duration {
	d, _ := time.ParseDuration(c.StaleCacheMaxAge)
	return d
}

// Workers returns the parsed worker count.
func (c *Config) Workers() int {
	n, _ := strconv.Atoi(c.WorkerCount)
	return n
}

// QueueSize returns the parsed worker queue depth.
func (c *Config) QueueSize() int {
	n, _ := strconv.Atoi(c.WorkerQueueSize)
	return n
}

// ProviderRPS returns the parsed per-provider rate limit.
func (c *Config) ProviderRPS() float64 {
	f, _ := strconv.ParseFloat(c.ProviderRateLimit, 64)
	return f
}

// MinHighResWidth returns the parsed high-resolution width threshold.
func (c *Config) MinHighResWidth() int {
	n, _ := strconv.Atoi(c.HighResMinWidth)
	return n
}
