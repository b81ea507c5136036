package covers

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/models"
)

// maxImageBytes caps a single cover download.
const maxImageBytes = 20 << 20

// Resolution is the outcome of one chain walk. Bytes is nil when the
// placeholder won; callers use it for S3/disk backfill.
type Resolution struct {
	Image      *models.ImageDetails
	Provenance *models.ImageProvenance
	Bytes      []byte
}

// Resolver walks the source chain in order until a candidate decodes.
type Resolver struct {
	sources     []Source
	placeholder string
	minHighRes  int
	logger      logging.Logger
}

// NewResolver builds a resolver over the given chain. placeholderURL
// is the terminal answer; minHighResWidth is the pixel threshold for
// the high-res preferences.
func NewResolver(sources []Source, placeholderURL string, minHighResWidth int, logger logging.Logger) *Resolver {
	if minHighResWidth <= 0 {
		minHighResWidth = 600
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Resolver{
		sources:     append(sources, NewPlaceholderSource(placeholderURL)),
		placeholder: placeholderURL,
		minHighRes:  minHighResWidth,
		logger:      logger,
	}
}

// Resolve walks the chain. It always returns a usable Resolution; the
// provenance trail records every attempt including the skipped and
// failed ones.
func (r *Resolver) Resolve(ctx context.Context, book BookRef, pref Preference) *Resolution {
	prov := &models.ImageProvenance{
		BookID:    book.ID,
		StartedAt: time.Now().UTC(),
	}

	for _, source := range r.sources {
		if resolution := r.trySource(ctx, source, book, pref, prov); resolution != nil {
			return resolution
		}
	}

	// Unreachable: the placeholder source always yields. Kept so the
	// signature stays total if the chain is ever misconfigured.
	details := &models.ImageDetails{URL: r.placeholder, Source: "placeholder"}
	prov.Complete(details, true)
	return &Resolution{Image: details, Provenance: prov}
}

func (r *Resolver) trySource(ctx context.Context, source Source, book BookRef, pref Preference, prov *models.ImageProvenance) *Resolution {
	candidates, err := source.Candidates(ctx, book)
	if err != nil {
		prov.Record(models.ImageAttempt{
			Source: source.Name(),
			Status: attemptStatus(err),
			Reason: err.Error(),
		})
		return nil
	}
	if len(candidates) == 0 {
		prov.Record(models.ImageAttempt{
			Source: source.Name(),
			Status: models.AttemptNotFound,
			Reason: "no candidates",
		})
		return nil
	}

	if pref == PrefHighResFirst {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].HighResHint && !candidates[j].HighResHint
		})
	}

	for _, candidate := range candidates {
		if resolution := r.tryCandidate(ctx, source.Name(), candidate, pref, prov); resolution != nil {
			return resolution
		}
	}
	return nil
}

func (r *Resolver) tryCandidate(ctx context.Context, sourceName string, candidate Candidate, pref Preference, prov *models.ImageProvenance) *Resolution {
	// The placeholder (and any other fetch-free candidate) is accepted
	// as-is and marks the resolution as placeholder-backed.
	if candidate.Open == nil {
		details := &models.ImageDetails{URL: candidate.URL, Source: sourceName}
		prov.Record(models.ImageAttempt{
			Source: sourceName,
			URL:    candidate.URL,
			Status: models.AttemptSuccess,
		})
		prov.Complete(details, sourceName == "placeholder")
		return &Resolution{Image: details, Provenance: prov}
	}

	data, err := r.fetch(ctx, candidate)
	if err != nil {
		prov.Record(models.ImageAttempt{
			Source: sourceName,
			URL:    candidate.URL,
			Status: attemptStatus(err),
			Reason: err.Error(),
		})
		return nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		prov.Record(models.ImageAttempt{
			Source: sourceName,
			URL:    candidate.URL,
			Status: models.AttemptFailure,
			Reason: "undecodable image data",
		})
		return nil
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	highRes := width >= r.minHighRes

	if pref == PrefHighResOnly && !highRes {
		prov.Record(models.ImageAttempt{
			Source: sourceName,
			URL:    candidate.URL,
			Status: models.AttemptSkipped,
			Reason: "below high-res threshold",
			Metadata: map[string]string{
				"width":  strconv.Itoa(width),
				"height": strconv.Itoa(height),
			},
		})
		return nil
	}

	details := &models.ImageDetails{
		URL:     candidate.URL,
		Source:  sourceName,
		Width:   width,
		Height:  height,
		HighRes: highRes,
	}
	prov.Record(models.ImageAttempt{
		Source: sourceName,
		URL:    candidate.URL,
		Status: models.AttemptSuccess,
	})
	prov.Complete(details, false)
	return &Resolution{Image: details, Provenance: prov, Bytes: data}
}

func (r *Resolver) fetch(ctx context.Context, candidate Candidate) ([]byte, error) {
	rc, err := candidate.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes))
	if err != nil {
		return nil, errors.ProviderError("failed to read image bytes", err)
	}
	if len(data) == 0 {
		return nil, errors.NotFoundError("cover image")
	}
	return data, nil
}

func attemptStatus(err error) models.AttemptStatus {
	switch {
	case errors.IsNotFound(err):
		return models.AttemptNotFound
	case errors.IsType(err, errors.ErrTypeTimeout):
		return models.AttemptTimeout
	default:
		return models.AttemptFailure
	}
}

