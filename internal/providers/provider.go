// Package providers defines the external book metadata provider contract
// and a registry for fan-out operations across all configured providers.
package providers

import (
	"context"
	"strings"
	"sync"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/models"
)

// Provider fetches book metadata from one external catalog. Empty
// results come back as NotFoundError; transport and server failures as
// ProviderError.
type Provider interface {
	Name() string
	FetchByID(ctx context.Context, id string) (*models.Book, error)
	FetchByISBN(ctx context.Context, isbn string) (*models.Book, error)
	Search(ctx context.Context, query string) ([]*models.Book, error)
}

// Registry holds the configured providers in lookup order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	byName    map[string]Provider
	logger    logging.Logger
}

func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Registry{
		byName: make(map[string]Provider),
		logger: logger,
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[p.Name()]; exists {
		return
	}
	r.byName[p.Name()] = p
	r.providers = append(r.providers, p)
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// All returns providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// FetchByISBN tries each provider in order and returns the first hit.
// Provider failures are soft; only full exhaustion is an error.
func (r *Registry) FetchByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	for _, p := range r.All() {
		book, err := p.FetchByISBN(ctx, isbn)
		if err == nil {
			return book, nil
		}
		if !errors.IsNotFound(err) {
			r.logger.Warn("Provider lookup failed",
				logging.String("provider", p.Name()),
				logging.String("isbn", isbn),
				logging.String("error", err.Error()),
			)
		}
	}
	return nil, errors.NotFoundError("book")
}

// Search fans out to every provider concurrently and merges results,
// deduping by ISBN first and normalized title+author second.
func (r *Registry) Search(ctx context.Context, query string) ([]*models.Book, error) {
	all := r.All()
	if len(all) == 0 {
		return nil, nil
	}

	type result struct {
		provider string
		books    []*models.Book
		err      error
	}

	results := make(chan result, len(all))
	for _, p := range all {
		go func(p Provider) {
			books, err := p.Search(ctx, query)
			results <- result{provider: p.Name(), books: books, err: err}
		}(p)
	}

	var merged []*models.Book
	seen := make(map[string]bool)
	for range all {
		res := <-results
		if res.err != nil {
			if !errors.IsNotFound(res.err) {
				r.logger.Warn("Provider search failed",
					logging.String("provider", res.provider),
					logging.String("error", res.err.Error()),
				)
			}
			continue
		}
		for _, book := range res.books {
			key := mergeKey(book)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, book)
		}
	}
	return merged, nil
}

func mergeKey(book *models.Book) string {
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
