package service

import (
	"context"
	"strings"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/models"
	"bookvault/internal/providers"
	"bookvault/internal/storage"
	"bookvault/internal/workers"
)

const (
	// minLocalResults is the store-result count below which the
	// provider fan-out kicks in.
	minLocalResults = 3
	maxSearchLimit  = 50
)

// SearchService answers queries from the store first and widens to the
// external providers only when the local catalog is thin.
type SearchService struct {
	store     storage.Storage
	providers *providers.Registry
	persist   func(*models.Book) // enqueues background persistence
	pool      *workers.Pool
	logger    logging.Logger
}

func NewSearchService(store storage.Storage, registry *providers.Registry, pool *workers.Pool, persist func(*models.Book), logger logging.Logger) *SearchService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SearchService{
		store:     store,
		providers: registry,
		persist:   persist,
		pool:      pool,
		logger:    logger,
	}
}

// Search merges local and provider results. Local records win ties so
// canonical IDs stay stable for clients.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.ValidationError("search query is required")
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = 20
	}

	local, err := s.store.SearchBooks(ctx, query, limit)
	if err != nil {
		s.logger.Warn("Store search failed, falling back to providers",
			logging.String("query", query),
			logging.String("error", err.Error()),
		)
		local = nil
	}

	results := make([]models.SearchResult, 0, len(local))
	seen := make(map[string]bool)
	for _, book := range local {
		results = append(results, models.SearchResult{Book: book, Origin: "store"})
		seen[searchKey(book)] = true
	}

	if len(results) >= minLocalResults {
		return results, nil
	}

	remote, err := s.providers.Search(ctx, query)
	if err != nil {
		if len(results) > 0 {
			return results, nil
		}
		return nil, err
	}

	for _, book := range remote {
		if len(results) >= limit {
			break
		}
		key := searchKey(book)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, models.SearchResult{Book: book, Origin: book.Source})
		if s.persist != nil {
			s.persist(book)
		}
	}
	return results, nil
}

func searchKey(book *models.Book) string {
	if isbn := book.ISBN(); isbn != "" {
		return "isbn:" + utils.NormalizeISBN(isbn)
	}
	if book.Title == "" {
		return ""
	}
	author := ""
	if len(book.Authors) > 0 {
		author = book.Authors[0]
	}
	return "ta:" + strings.ToLower(strings.TrimSpace(book.Title)) + "|" + strings.ToLower(strings.TrimSpace(author))
}
