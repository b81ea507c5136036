// Package objectstore defines the binary blob contract used for cover
// images. Implementations exist for S3-compatible services and the local
// filesystem; both address objects by a relative key.
package objectstore

import (
	"context"
	"io"
)

// Store reads and writes cover image blobs by key.
type Store interface {
	// Put stores the object under key, overwriting any existing object.
	Put(ctx context.Context, key string, contentType string, body io.Reader) error

	// Get returns a reader for the object. Callers must close it.
	// Returns a NotFoundError when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the key is present without fetching the body.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a stable address for the object, or "" if the store
	// has no externally reachable addressing scheme.
	URL(key string) string
}
