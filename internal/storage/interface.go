// Package storage defines the relational store contract for book records,
// external-ID mappings, edition links, cache metadata, and cover
// provenance. The store is the single writer of truth for canonical IDs
// and edition links; the cache tiers above it hold advisory copies.
package storage

import (
	"context"
	"time"

	"bookvault/internal/models"
)

type Storage interface {
	// Connection management
	Close() error
	Health() error

	// Books
	// GetBook retrieves a book by canonical ID.
	GetBook(ctx context.Context, id string) (*models.Book, error)

	// UpsertBook inserts or updates a book and returns its canonical ID.
	// A book arriving without a canonical UUID must have one assigned by
	// the caller before upserting.
	UpsertBook(ctx context.Context, book *models.Book) (string, error)

	// DeleteBook removes a book; edition links cascade.
	DeleteBook(ctx context.Context, id string) error

	// SearchBooks performs a title/author substring search.
	SearchBooks(ctx context.Context, query string, limit int) ([]*models.Book, error)

	// FindBooksByCategories returns books sharing any of the given
	// categories, excluding the given ID, for recommendations.
	FindBooksByCategories(ctx context.Context, categories []string, excludeID string, limit int) ([]*models.Book, error)

	// FindBooksMissingCovers returns books with no backfilled cover,
	// for the maintenance retry job.
	FindBooksMissingCovers(ctx context.Context, limit int) ([]*models.Book, error)

	// External-ID mapping
	// FindByExternalID resolves a provider-specific ID to a canonical ID.
	FindByExternalID(ctx context.Context, source, externalID string) (string, error)

	// FindByISBN resolves an ISBN-10 or ISBN-13 to a canonical ID.
	FindByISBN(ctx context.Context, isbn string) (string, error)

	// MapExternalID records source+externalID → canonicalID; idempotent.
	MapExternalID(ctx context.Context, source, externalID, canonicalID string) error

	// Cache metadata
	SaveCachedBook(ctx context.Context, cached *models.CachedBook) error
	GetCachedBook(ctx context.Context, id string) (*models.CachedBook, error)

	// TouchCachedBook bumps access count and last-accessed time.
	TouchCachedBook(ctx context.Context, id string) error

	// DeleteStaleCachedBooks prunes cache rows untouched since before.
	DeleteStaleCachedBooks(ctx context.Context, before time.Time) (int64, error)

	// Editions
	// GetEditionGroup returns all books sharing an edition-group key.
	GetEditionGroup(ctx context.Context, groupKey string) ([]*models.Book, error)

	// ReplaceEditionLinks deletes every link row for the group and
	// recreates the given set in one transaction.
	ReplaceEditionLinks(ctx context.Context, groupKey string, links []models.EditionLink) error

	GetEditionLinks(ctx context.Context, groupKey string) ([]models.EditionLink, error)

	// SetPrimaryEdition marks one book primary within its group and
	// clears the flag on the others.
	SetPrimaryEdition(ctx context.Context, groupKey, primaryID string) error

	// Cover provenance audit
	SaveProvenance(ctx context.Context, prov *models.ImageProvenance) error
	GetProvenance(ctx context.Context, bookID string) (*models.ImageProvenance, error)
}

// StorageConfig is implemented by adapter-specific configurations.
type StorageConfig interface {
	Validate() error
	GetType() string
}

// StorageFactory creates a connected Storage from its config.
type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}
