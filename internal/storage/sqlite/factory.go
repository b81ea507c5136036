package sqlite

import (
	"fmt"

	"bookvault/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewAdapter(cfg)
	case storage.GenericConfig:
		return NewAdapter(&Config{
			Path: cfg.GetString("path", ""),
		})
	default:
		return nil, fmt.Errorf("unsupported config type for SQLite storage: %T", config)
	}
}

func (f *Factory) GetType() string {
	return "sqlite"
}

func init() {
	storage.Register("sqlite", &Factory{})
}
