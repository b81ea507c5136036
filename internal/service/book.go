// Package service holds the request-facing business logic: book
// lookups over the tiered cache, merged search, recommendations, and
// cover orchestration.
package service

import (
	"context"

	"bookvault/internal/bookcache"
	"bookvault/internal/common/logging"
	"bookvault/internal/models"
	"bookvault/internal/storage"
)

// BookService answers single-book lookups.
type BookService struct {
	tiered *bookcache.TieredCache
	store  storage.Storage
	logger logging.Logger
}

func NewBookService(tiered *bookcache.TieredCache, store storage.Storage, logger logging.Logger) *BookService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &BookService{tiered: tiered, store: store, logger: logger}
}

func (s *BookService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return s.tiered.GetBook(ctx, id)
}

func (s *BookService) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	return s.tiered.GetBookByISBN(ctx, isbn)
}

// InvalidateBook drops the cached copies; the store record stays.
func (s *BookService) InvalidateBook(ctx context.Context, id string) error {
	return s.tiered.Invalidate(ctx, id)
}
