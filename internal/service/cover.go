package service

import (
	"bytes"
	"context"
	"time"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/covers"
	"bookvault/internal/events"
	"bookvault/internal/models"
	"bookvault/internal/objectstore"
	"bookvault/internal/storage"
	"bookvault/internal/workers"
)

// CoverService answers cover requests with whatever is already stored
// and runs the full resolution chain in the background. Full
// resolution saves provenance, backfills the object stores, and
// publishes a CoverUpdatedEvent so clients can swap the placeholder.
type CoverService struct {
	books       *BookService
	store       storage.Storage
	resolver    *covers.Resolver
	s3          objectstore.Store // optional
	disk        objectstore.Store // optional
	pool        *workers.Pool     // nil resolves synchronously
	events      events.Publisher
	placeholder string
	minHighRes  int
	logger      logging.Logger
}

type CoverOptions struct {
	Books          *BookService
	Store          storage.Storage
	Resolver       *covers.Resolver
	S3             objectstore.Store
	Disk           objectstore.Store
	Pool           *workers.Pool
	Events         events.Publisher
	PlaceholderURL string
	// MinHighResWidth is the pixel threshold for judging stored
	// covers; it should match the resolver's.
	MinHighResWidth int
	Logger          logging.Logger
}

func NewCoverService(opts CoverOptions) *CoverService {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	minHighRes := opts.MinHighResWidth
	if minHighRes <= 0 {
		minHighRes = 600
	}
	return &CoverService{
		books:       opts.Books,
		store:       opts.Store,
		resolver:    opts.Resolver,
		s3:          opts.S3,
		disk:        opts.Disk,
		pool:        opts.Pool,
		events:      publisher,
		placeholder: opts.PlaceholderURL,
		minHighRes:  minHighRes,
		logger:      logger,
	}
}

// GetCover returns immediately: a stored cover when one exists,
// otherwise the placeholder while the chain runs in the background.
func (s *CoverService) GetCover(ctx context.Context, id string, pref covers.Preference) (*models.ImageDetails, error) {
	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	ref := coverRef(book)
	if stored := s.storedImage(ctx, ref); stored != nil {
		// A stored low-res cover does not satisfy high-only; run the
		// chain for a better one instead of answering with it.
		if pref != covers.PrefHighResOnly || stored.HighRes {
			return stored, nil
		}
	}

	s.resolveAsync(ref, pref)
	return &models.ImageDetails{URL: s.placeholder, Source: "placeholder"}, nil
}

// ResolveCover runs the full chain synchronously and returns the
// outcome. Handlers use GetCover; maintenance retries use this.
func (s *CoverService) ResolveCover(ctx context.Context, id string, pref covers.Preference) (*models.ImageDetails, error) {
	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.resolve(ctx, coverRef(book), pref)
	return res.Image, nil
}

// GetProvenance returns the attempt trail of the last resolution.
func (s *CoverService) GetProvenance(ctx context.Context, id string) (*models.ImageProvenance, error) {
	return s.store.GetProvenance(ctx, id)
}

func coverRef(book *models.Book) covers.BookRef {
	return covers.BookRef{
		ID:               book.ID,
		ISBN:             book.ISBN(),
		Source:           book.Source,
		ExternalID:       book.ExternalID,
		S3ImagePath:      book.S3ImagePath,
		ExternalImageURL: book.ExternalImageURL,
		CoverWidth:       book.CoverWidth,
		CoverHeight:      book.CoverHeight,
	}
}

// storedImage answers from the object stores without fetching bytes.
// HighRes comes from the dimensions recorded at backfill time; an
// unmeasured cover is not assumed high-res.
func (s *CoverService) storedImage(ctx context.Context, ref covers.BookRef) *models.ImageDetails {
	key := ref.S3ImagePath
	if key == "" && ref.ID != "" {
		key = covers.ObjectKey(ref.ID)
	}
	if key == "" {
		return nil
	}

	details := func(url, source string) *models.ImageDetails {
		return &models.ImageDetails{
			URL:     url,
			Path:    key,
			Source:  source,
			Width:   ref.CoverWidth,
			Height:  ref.CoverHeight,
			HighRes: ref.CoverWidth >= s.minHighRes,
		}
	}

	if s.s3 != nil {
		if exists, err := s.s3.Exists(ctx, key); err == nil && exists {
			return details(s.s3.URL(key), "s3")
		}
	}
	if s.disk != nil {
		if exists, err := s.disk.Exists(ctx, key); err == nil && exists {
			return details(s.disk.URL(key), "disk")
		}
	}
	return nil
}

func (s *CoverService) resolveAsync(ref covers.BookRef, pref covers.Preference) {
	if s.pool == nil {
		s.resolve(context.Background(), ref, pref)
		return
	}
	s.pool.Submit(workers.Task{
		Name: "resolve-cover",
		Run: func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			s.resolve(ctx, ref, pref)
		},
	})
}

func (s *CoverService) resolve(ctx context.Context, ref covers.BookRef, pref covers.Preference) *covers.Resolution {
	res := s.resolver.Resolve(ctx, ref, pref)

	if err := s.store.SaveProvenance(ctx, res.Provenance); err != nil {
		s.logger.Warn("Provenance save failed",
			logging.String("id", ref.ID),
			logging.String("error", err.Error()),
		)
	}

	if len(res.Bytes) > 0 && res.Image.Source != "s3" && res.Image.Source != "disk" {
		s.backfill(ctx, ref, res)
	}
	return res
}

// backfillRetryConfig keeps object-store writes short: two quick
// attempts, never a not-found retry.
func backfillRetryConfig() utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: func(err error) bool {
			return !errors.IsNotFound(err)
		},
	}
}

// backfill persists a freshly resolved cover to the object stores,
// records its location on the book, and announces it.
func (s *CoverService) backfill(ctx context.Context, ref covers.BookRef, res *covers.Resolution) {
	key := covers.ObjectKey(ref.ID)
	stored := false

	for _, target := range []struct {
		name  string
		store objectstore.Store
	}{{"s3", s.s3}, {"disk", s.disk}} {
		if target.store == nil {
			continue
		}
		err := utils.RetryWithBackoff(ctx, backfillRetryConfig(), func() error {
			return target.store.Put(ctx, key, "image/jpeg", bytes.NewReader(res.Bytes))
		})
		if err != nil {
			s.logger.Warn("Cover backfill write failed",
				logging.String("target", target.name),
				logging.String("key", key),
				logging.String("error", err.Error()),
			)
			continue
		}
		stored = true
	}
	if !stored {
		return
	}

	book, err := s.store.GetBook(ctx, ref.ID)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("Cover location update failed",
				logging.String("id", ref.ID),
				logging.String("error", err.Error()),
			)
		}
		return
	}
	book.S3ImagePath = key
	book.CoverWidth = res.Image.Width
	book.CoverHeight = res.Image.Height
	if _, err := s.store.UpsertBook(ctx, book); err != nil {
		s.logger.Warn("Cover location update failed",
			logging.String("id", ref.ID),
			logging.String("error", err.Error()),
		)
	}

	s.events.PublishCoverUpdated(ctx, ref.ID, res.Image)
}
