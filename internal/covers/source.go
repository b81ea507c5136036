// Package covers resolves a usable cover image for a book by walking a
// fixed chain of sources. Every attempt, successful or not, lands in
// the provenance trail; the chain always terminates with an image or
// the placeholder and never with an error.
package covers

import (
	"context"
	"io"
)

// Preference controls how high-resolution candidates are treated.
type Preference string

const (
	// PrefAny accepts the first decodable image.
	PrefAny Preference = "any"
	// PrefHighResOnly skips candidates below the configured minimum
	// width and keeps walking the chain.
	PrefHighResOnly Preference = "high-only"
	// PrefHighResFirst reorders candidates within each source so
	// likely-high-res ones are tried first, but accepts any.
	PrefHighResFirst Preference = "high-first"
)

// ParsePreference maps the query-string form to a Preference,
// defaulting to PrefAny.
func ParsePreference(s string) Preference {
	switch Preference(s) {
	case PrefHighResOnly, PrefHighResFirst:
		return Preference(s)
	default:
		return PrefAny
	}
}

// Candidate is one potential cover image offered by a source. Open
// fetches the bytes; the resolver decodes them to judge usability.
type Candidate struct {
	// URL is the externally visible address, recorded in provenance.
	URL string
	// HighResHint marks candidates a source believes are large,
	// before any bytes have been fetched.
	HighResHint bool
	// Open returns the image bytes. May be nil for candidates that
	// are accepted without fetching (the placeholder).
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Source offers cover candidates for a book. Returning no candidates
// and no error means the source simply has nothing for this book.
type Source interface {
	Name() string
	Candidates(ctx context.Context, book BookRef) ([]Candidate, error)
}

// BookRef is the subset of a book record the chain needs. CoverWidth
// and CoverHeight are the measured dimensions of the stored cover,
// zero when no cover has been backfilled yet.
type BookRef struct {
	ID               string
	ISBN             string
	Source           string
	ExternalID       string
	S3ImagePath      string
	ExternalImageURL string
	CoverWidth       int
	CoverHeight      int
}
