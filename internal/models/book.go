// Package models defines the plain data structures shared across the
// service: canonical book records, cache-tier projections, edition
// relationships, and cover image provenance. Persistence adapters map
// these to their native representations; there is no ORM layer.
package models

import (
	"encoding/json"
	"time"
)

// Book is the canonical book record. Before canonicalization the ID may
// be a provider-specific external ID; once a canonical UUID is assigned,
// all external IDs for the same work map to it via the external-ID table
// and this record is the single source of truth for cache population.
type Book struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Description   string   `json:"description,omitempty"`
	ISBN10        string   `json:"isbn_10,omitempty"`
	ISBN13        string   `json:"isbn_13,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	AverageRating float64  `json:"average_rating,omitempty"`
	RatingsCount  int      `json:"ratings_count,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Language      string   `json:"language,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	InfoLink      string   `json:"info_link,omitempty"`
	PreviewLink   string   `json:"preview_link,omitempty"`

	// Provider origin, kept until (and after) canonicalization
	Source     string `json:"source,omitempty"`
	ExternalID string `json:"external_id,omitempty"`

	// Raw provider JSON as received; may contain concatenated objects
	// from older ingestion runs and must be parsed defensively
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`

	// Derived / cached fields
	S3ImagePath       string            `json:"s3_image_path,omitempty"`
	ExternalImageURL  string            `json:"external_image_url,omitempty"`
	CoverWidth        int               `json:"cover_width,omitempty"`
	CoverHeight       int               `json:"cover_height,omitempty"`
	RecommendationIDs []string          `json:"recommendation_ids,omitempty"`
	Qualifiers        map[string]string `json:"qualifiers,omitempty"`

	Edition *EditionInfo `json:"edition,omitempty"`
}

// ISBN returns the preferred ISBN for lookups: ISBN-13 when present,
// otherwise ISBN-10.
func (b *Book) ISBN() string {
	if b.ISBN13 != "" {
		return b.ISBN13
	}
	return b.ISBN10
}

// CachedBook is the cache-tier projection of a Book plus cache metadata.
// It is created on the first cache miss resolved from a provider and
// mutated (access count, last-accessed) on every store-tier hit.
type CachedBook struct {
	Book           Book            `json:"book"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	AccessCount    int64           `json:"access_count"`
	Embedding      []float32       `json:"embedding,omitempty"`
	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
}

// NewCachedBook wraps a book in a cache projection with fresh metadata.
func NewCachedBook(book Book) *CachedBook {
	now := time.Now().UTC()
	return &CachedBook{
		Book:           book,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    1,
		RawPayload:     book.RawPayload,
	}
}

// SearchResult is a book plus where it came from during a merged search.
type SearchResult struct {
	Book      *Book  `json:"book"`
	Origin    string `json:"origin"` // "store" or a provider name
	Relevance int    `json:"relevance,omitempty"`
}
