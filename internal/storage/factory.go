package storage

import (
	"fmt"
	"strconv"

	"bookvault/internal/common/errors"
	"bookvault/internal/config"
)

// NewStorage creates a storage adapter based on configuration. Adapters
// register themselves with the default registry in their init functions;
// import the adapter packages for side effects before calling this.
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return Create("sqlite", GenericConfig{
			"path": cfg.DatabasePath,
		})

	case "postgres", "postgresql":
		port, _ := strconv.Atoi(cfg.PostgresPort)
		return Create("postgres", GenericConfig{
			"host":     cfg.PostgresHost,
			"port":     port,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		})

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}

// GenericConfig is a map-based StorageConfig handed to adapter factories,
// which convert it into their typed config.
type GenericConfig map[string]interface{}

func (g GenericConfig) Validate() error { return nil }

func (g GenericConfig) GetType() string { return "generic" }

// GetString fetches a string value with a default.
func (g GenericConfig) GetString(key, def string) string {
	if v, ok := g[key].(string); ok && v != "" {
		return v
	}
	return def
}

// GetInt fetches an int value with a default.
func (g GenericConfig) GetInt(key string, def int) int {
	if v, ok := g[key].(int); ok && v != 0 {
		return v
	}
	return def
}
