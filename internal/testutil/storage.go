// Package testutil provides in-memory fakes for unit tests that need a
// storage backend without a database file.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bookvault/internal/common/errors"
	"bookvault/internal/models"
	"bookvault/internal/storage"
)

// MemoryStorage is a mutex-guarded in-memory implementation of
// storage.Storage. Zero value is not usable; construct with
// NewMemoryStorage.
type MemoryStorage struct {
	mu          sync.RWMutex
	books       map[string]*models.Book
	externalIDs map[string]string // "source|externalID" -> canonical ID
	cached      map[string]*models.CachedBook
	links       map[string][]models.EditionLink
	provenance  map[string]*models.ImageProvenance

	// FailWith, when set, is returned by every operation. Used to
	// exercise soft-failure fallthrough in the cache cascade.
	FailWith error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		books:       make(map[string]*models.Book),
		externalIDs: make(map[string]string),
		cached:      make(map[string]*models.CachedBook),
		links:       make(map[string][]models.EditionLink),
		provenance:  make(map[string]*models.ImageProvenance),
	}
}

func (m *MemoryStorage) Close() error  { return nil }
func (m *MemoryStorage) Health() error { return m.FailWith }

func (m *MemoryStorage) GetBook(ctx context.Context, id string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	book, ok := m.books[id]
	if !ok {
		return nil, errors.NotFoundError("book")
	}
	copied := *book
	return &copied, nil
}

func (m *MemoryStorage) UpsertBook(ctx context.Context, book *models.Book) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	if book.ID == "" {
		return "", errors.ValidationError("book ID is required for upsert")
	}
	copied := *book
	m.books[book.ID] = &copied
	return book.ID, nil
}

func (m *MemoryStorage) DeleteBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.books[id]; !ok {
		return errors.NotFoundError("book")
	}
	delete(m.books, id)
	delete(m.cached, id)
	return nil
}

func (m *MemoryStorage) SearchBooks(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)

	var results []*models.Book
	for _, book := range m.books {
		haystack := strings.ToLower(book.Title + " " + book.Subtitle + " " + strings.Join(book.Authors, " "))
		if strings.Contains(haystack, needle) {
			copied := *book
			results = append(results, &copied)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].RatingsCount > results[j].RatingsCount
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStorage) FindBooksByCategories(ctx context.Context, categories []string, excludeID string, limit int) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if limit <= 0 {
		limit = 10
	}

	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[strings.ToLower(c)] = true
	}

	var results []*models.Book
	for _, book := range m.books {
		if book.ID == excludeID {
			continue
		}
		for _, c := range book.Categories {
			if wanted[strings.ToLower(c)] {
				copied := *book
				results = append(results, &copied)
				break
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].RatingsCount > results[j].RatingsCount
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStorage) FindBooksMissingCovers(ctx context.Context, limit int) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*models.Book
	for _, book := range m.books {
		if book.S3ImagePath != "" {
			continue
		}
		copied := *book
		results = append(results, &copied)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStorage) FindByExternalID(ctx context.Context, source, externalID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	id, ok := m.externalIDs[source+"|"+externalID]
	if !ok {
		return "", errors.NotFoundError("external ID mapping")
	}
	return id, nil
}

func (m *MemoryStorage) FindByISBN(ctx context.Context, isbn string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	for _, book := range m.books {
		if book.ISBN13 == isbn || book.ISBN10 == isbn {
			return book.ID, nil
		}
	}
	return "", errors.NotFoundError("book with ISBN")
}

func (m *MemoryStorage) MapExternalID(ctx context.Context, source, externalID, canonicalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.externalIDs[source+"|"+externalID] = canonicalID
	return nil
}

func (m *MemoryStorage) SaveCachedBook(ctx context.Context, cached *models.CachedBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	copied := *cached
	if existing, ok := m.cached[cached.Book.ID]; ok {
		copied.AccessCount = existing.AccessCount + 1
	}
	m.cached[cached.Book.ID] = &copied
	return nil
}

func (m *MemoryStorage) GetCachedBook(ctx context.Context, id string) (*models.CachedBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	cached, ok := m.cached[id]
	if !ok {
		return nil, errors.NotFoundError("cached book")
	}
	copied := *cached
	return &copied, nil
}

func (m *MemoryStorage) TouchCachedBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if cached, ok := m.cached[id]; ok {
		cached.AccessCount++
		cached.LastAccessedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStorage) DeleteStaleCachedBooks(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var deleted int64
	for id, cached := range m.cached {
		if cached.LastAccessedAt.Before(before) {
			delete(m.cached, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStorage) GetEditionGroup(ctx context.Context, groupKey string) ([]*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var group []*models.Book
	for _, book := range m.books {
		if book.Edition != nil && book.Edition.GroupKey == groupKey {
			copied := *book
			group = append(group, &copied)
		}
	}
	sort.Slice(group, func(i, j int) bool {
		return group[i].Edition.EditionNumber > group[j].Edition.EditionNumber
	})
	return group, nil
}

func (m *MemoryStorage) ReplaceEditionLinks(ctx context.Context, groupKey string, links []models.EditionLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.links[groupKey] = append([]models.EditionLink(nil), links...)
	return nil
}

func (m *MemoryStorage) GetEditionLinks(ctx context.Context, groupKey string) ([]models.EditionLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return append([]models.EditionLink(nil), m.links[groupKey]...), nil
}

func (m *MemoryStorage) SetPrimaryEdition(ctx context.Context, groupKey, primaryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, book := range m.books {
		if book.Edition == nil || book.Edition.GroupKey != groupKey {
			continue
		}
		book.Edition.IsPrimary = book.ID == primaryID
		if book.ID == primaryID {
			book.Edition.PrimaryID = ""
		} else {
			book.Edition.PrimaryID = primaryID
		}
	}
	return nil
}

func (m *MemoryStorage) SaveProvenance(ctx context.Context, prov *models.ImageProvenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	copied := *prov
	m.provenance[prov.BookID] = &copied
	return nil
}

func (m *MemoryStorage) GetProvenance(ctx context.Context, bookID string) (*models.ImageProvenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	prov, ok := m.provenance[bookID]
	if !ok {
		return nil, errors.NotFoundError("cover provenance")
	}
	copied := *prov
	return &copied, nil
}

// BookCount reports how many books are stored; used by tests asserting
// background persistence happened.
func (m *MemoryStorage) BookCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books)
}

var _ storage.Storage = (*MemoryStorage)(nil)
