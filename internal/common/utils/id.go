// Package utils provides small helpers shared across the application:
// canonical ID generation and format checks, and retry with backoff for
// external calls.
package utils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewCanonicalID mints a new canonical book ID (UUID v4).
func NewCanonicalID() string {
	return uuid.NewString()
}

// IsCanonicalID reports whether the given ID is a canonical UUID rather
// than a raw provider ID. The cascade uses this to decide whether a
// lookup can go straight to the books table or must consult the
// external-ID mapping first.
func IsCanonicalID(id string) bool {
	return uuidPattern.MatchString(id)
}

// NormalizeISBN strips hyphens and spaces from an ISBN
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(normalized, " ", "")
}
