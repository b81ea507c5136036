package sqlite

import "fmt"

type Config struct {
	Path string
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}
