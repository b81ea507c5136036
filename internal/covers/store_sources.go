package covers

import (
	"context"
	"fmt"
	"io"

	"bookvault/internal/objectstore"
)

// ObjectKey is the canonical cover location for a book in both the S3
// bucket and the disk cache.
func ObjectKey(bookID string) string {
	return fmt.Sprintf("covers/%s.jpg", bookID)
}

// storeSource serves covers already persisted in an object store. It
// fronts both the S3 bucket and the local disk cache.
type storeSource struct {
	name  string
	store objectstore.Store
}

func NewStoreSource(name string, store objectstore.Store) Source {
	return &storeSource{name: name, store: store}
}

func (s *storeSource) Name() string { return s.name }

func (s *storeSource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	keys := make([]string, 0, 2)
	if book.S3ImagePath != "" {
		keys = append(keys, book.S3ImagePath)
	}
	if book.ID != "" {
		derived := ObjectKey(book.ID)
		if derived != book.S3ImagePath {
			keys = append(keys, derived)
		}
	}

	var candidates []Candidate
	for _, key := range keys {
		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		key := key
		candidates = append(candidates, Candidate{
			URL:         s.store.URL(key),
			HighResHint: true, // stored covers were validated before writing
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return s.store.Get(ctx, key)
			},
		})
	}
	return candidates, nil
}
