package service

import (
	"context"
	"time"

	"bookvault/internal/cache"
	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/models"
	"bookvault/internal/storage"
)

const (
	defaultRecommendLimit = 10
	recommendCacheTTL     = 6 * time.Hour
)

// RecommendationService computes related books by shared categories,
// falling back to same-author matches, and keeps the resulting ID lists
// cached so the store scan runs only on cold entries.
type RecommendationService struct {
	books  *BookService
	store  storage.Storage
	cache  cache.Cache
	logger logging.Logger
}

func NewRecommendationService(books *BookService, store storage.Storage, idCache cache.Cache, logger logging.Logger) *RecommendationService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if idCache == nil {
		idCache = cache.NewLocalCache(recommendCacheTTL, time.Hour)
	}
	return &RecommendationService{
		books:  books,
		store:  store,
		cache:  idCache,
		logger: logger,
	}
}

// Recommend returns up to limit related books for the given ID.
func (s *RecommendationService) Recommend(ctx context.Context, id string, limit int) ([]*models.Book, error) {
	if limit <= 0 {
		limit = defaultRecommendLimit
	}

	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := book.RecommendationIDs
	if len(ids) == 0 {
		ids = s.cachedIDs(ctx, book.ID)
	}
	if len(ids) == 0 {
		ids, err = s.compute(ctx, book, limit)
		if err != nil {
			return nil, err
		}
		s.cacheIDs(ctx, book.ID, ids)
	}

	return s.hydrate(ctx, ids, limit), nil
}

func (s *RecommendationService) compute(ctx context.Context, book *models.Book, limit int) ([]string, error) {
	var related []*models.Book
	var err error

	if len(book.Categories) > 0 {
		related, err = s.store.FindBooksByCategories(ctx, book.Categories, book.ID, limit)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
	}
	if len(related) == 0 && len(book.Authors) > 0 {
		// Same-author fallback when category overlap finds nothing.
		related, err = s.store.SearchBooks(ctx, book.Authors[0], limit+1)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
	}

	ids := make([]string, 0, len(related))
	for _, rel := range related {
		if rel.ID == book.ID {
			continue
		}
		ids = append(ids, rel.ID)
	}
	return ids, nil
}

func (s *RecommendationService) cachedIDs(ctx context.Context, bookID string) []string {
	val, found := s.cache.Get(ctx, bookID)
	if !found {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		// JSON round-trip through the Redis tier.
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}

func (s *RecommendationService) cacheIDs(ctx context.Context, bookID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.cache.Set(ctx, bookID, ids, recommendCacheTTL); err != nil {
		s.logger.Debug("Recommendation cache write failed",
			logging.String("id", bookID),
			logging.String("error", err.Error()),
		)
	}
}

func (s *RecommendationService) hydrate(ctx context.Context, ids []string, limit int) []*models.Book {
	books := make([]*models.Book, 0, len(ids))
	for _, id := range ids {
		if len(books) >= limit {
			break
		}
		book, err := s.books.GetBook(ctx, id)
		if err != nil {
			// A pruned or unresolvable recommendation is dropped.
			continue
		}
		books = append(books, book)
	}
	return books
}
