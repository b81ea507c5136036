// Package disk implements the object store on the local filesystem.
// It backs the cover cache directory and doubles as the development
// stand-in for S3.
package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bookvault/internal/common/errors"
)

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.ConfigError("disk store root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.StorageError("failed to create store directory", err)
	}
	return &Store{root: root}, nil
}

// resolve maps a key to a path under root, rejecting traversal.
func (s *Store) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", errors.ValidationError(fmt.Sprintf("invalid object key: %q", key))
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.StorageError("failed to create object directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return errors.StorageError("failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return errors.StorageError("failed to write object", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.StorageError("failed to close temp file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.StorageError("failed to finalize object", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundError("object")
	}
	if err != nil {
		return nil, errors.StorageError("failed to open object", err)
	}
	return f, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.StorageError("failed to stat object", err)
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.StorageError("failed to delete object", err)
	}
	return nil
}

// URL returns the absolute file path; disk objects have no HTTP address.
func (s *Store) URL(key string) string {
	path, err := s.resolve(key)
	if err != nil {
		return ""
	}
	return path
}
