package covers

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/common/errors"
	"bookvault/internal/models"
)

// pngBytes renders a solid image of the given size.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 20, G: 40, B: 80, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

type stubSource struct {
	name       string
	candidates []Candidate
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	return s.candidates, s.err
}

func bytesCandidate(url string, data []byte, highRes bool) Candidate {
	return Candidate{
		URL:         url,
		HighResHint: highRes,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func failingCandidate(url string, err error) Candidate {
	return Candidate{
		URL: url,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return nil, err
		},
	}
}

func TestFirstDecodableCandidateWins(t *testing.T) {
	img := pngBytes(t, 100, 150)
	resolver := NewResolver([]Source{
		&stubSource{name: "s3"},
		&stubSource{name: "googlebooks", candidates: []Candidate{
			bytesCandidate("http://gb/cover.jpg", img, false),
		}},
		&stubSource{name: "openlibrary", candidates: []Candidate{
			bytesCandidate("http://ol/cover.jpg", img, false),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefAny)

	require.NotNil(t, res.Image)
	assert.Equal(t, "googlebooks", res.Image.Source)
	assert.Equal(t, 100, res.Image.Width)
	assert.Equal(t, 150, res.Image.Height)
	assert.False(t, res.Image.HighRes)
	assert.NotEmpty(t, res.Bytes)
	assert.False(t, res.Provenance.Placeholder)

	// s3 miss, googlebooks hit, openlibrary never attempted.
	require.Len(t, res.Provenance.Attempts, 2)
	assert.Equal(t, "s3", res.Provenance.Attempts[0].Source)
	assert.Equal(t, models.AttemptNotFound, res.Provenance.Attempts[0].Status)
	assert.Equal(t, models.AttemptSuccess, res.Provenance.Attempts[1].Status)
	assert.False(t, res.Provenance.CompletedAt.IsZero())
}

func TestUndecodableBytesFallThrough(t *testing.T) {
	resolver := NewResolver([]Source{
		&stubSource{name: "googlebooks", candidates: []Candidate{
			bytesCandidate("http://gb/broken.jpg", []byte("not an image"), false),
		}},
		&stubSource{name: "openlibrary", candidates: []Candidate{
			bytesCandidate("http://ol/cover.jpg", pngBytes(t, 80, 120), false),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefAny)

	assert.Equal(t, "openlibrary", res.Image.Source)
	assert.Equal(t, models.AttemptFailure, res.Provenance.Attempts[0].Status)
}

func TestSourceErrorIsSoft(t *testing.T) {
	resolver := NewResolver([]Source{
		&stubSource{name: "longitood", err: errors.ProviderError("connection refused", nil)},
		&stubSource{name: "openlibrary", candidates: []Candidate{
			bytesCandidate("http://ol/cover.jpg", pngBytes(t, 80, 120), false),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefAny)

	assert.Equal(t, "openlibrary", res.Image.Source)
	assert.Equal(t, models.AttemptFailure, res.Provenance.Attempts[0].Status)
}

func TestExhaustionEndsWithPlaceholder(t *testing.T) {
	resolver := NewResolver([]Source{
		&stubSource{name: "s3"},
		&stubSource{name: "googlebooks", candidates: []Candidate{
			failingCandidate("http://gb/cover.jpg", errors.NotFoundError("cover image")),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefAny)

	require.NotNil(t, res.Image)
	assert.Equal(t, "placeholder", res.Image.Source)
	assert.Equal(t, "http://placeholder.png", res.Image.URL)
	assert.True(t, res.Provenance.Placeholder)
	assert.Nil(t, res.Bytes)

	last := res.Provenance.Attempts[len(res.Provenance.Attempts)-1]
	assert.Equal(t, "placeholder", last.Source)
	assert.Equal(t, models.AttemptSuccess, last.Status)
}

func TestHighResOnlySkipsSmallImages(t *testing.T) {
	resolver := NewResolver([]Source{
		&stubSource{name: "googlebooks", candidates: []Candidate{
			bytesCandidate("http://gb/small.jpg", pngBytes(t, 100, 150), false),
		}},
		&stubSource{name: "openlibrary", candidates: []Candidate{
			bytesCandidate("http://ol/large.jpg", pngBytes(t, 800, 1200), true),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefHighResOnly)

	assert.Equal(t, "openlibrary", res.Image.Source)
	assert.True(t, res.Image.HighRes)

	skipped := res.Provenance.Attempts[0]
	assert.Equal(t, models.AttemptSkipped, skipped.Status)
	assert.Equal(t, "100", skipped.Metadata["width"])
}

func TestHighResOnlyFallsToPlaceholderWhenNothingQualifies(t *testing.T) {
	resolver := NewResolver([]Source{
		&stubSource{name: "googlebooks", candidates: []Candidate{
			bytesCandidate("http://gb/small.jpg", pngBytes(t, 100, 150), false),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefHighResOnly)
	assert.True(t, res.Provenance.Placeholder)
}

func TestHighResFirstReordersWithinSource(t *testing.T) {
	large := pngBytes(t, 800, 1200)
	resolver := NewResolver([]Source{
		&stubSource{name: "googlebooks", candidates: []Candidate{
			bytesCandidate("http://gb/small.jpg", pngBytes(t, 100, 150), false),
			bytesCandidate("http://gb/large.jpg", large, true),
		}},
	}, "http://placeholder.png", 600, nil)

	res := resolver.Resolve(context.Background(), BookRef{ID: "b1"}, PrefHighResFirst)

	assert.Equal(t, "http://gb/large.jpg", res.Image.URL, "hinted candidate tried first")
	assert.True(t, res.Image.HighRes)
}

func TestParsePreference(t *testing.T) {
	assert.Equal(t, PrefAny, ParsePreference(""))
	assert.Equal(t, PrefAny, ParsePreference("bogus"))
	assert.Equal(t, PrefHighResOnly, ParsePreference("high-only"))
	assert.Equal(t, PrefHighResFirst, ParsePreference("high-first"))
}
