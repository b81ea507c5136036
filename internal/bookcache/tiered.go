// Package bookcache implements the book lookup cascade: process-local
// memory, then Redis, then the relational store, then the external
// providers. A hit at any tier refills every tier above it, so repeat
// lookups get cheaper. Cache-tier failures are soft; only full
// exhaustion surfaces as not-found.
package bookcache

import (
	"context"
	"encoding/json"
	"time"

	"bookvault/internal/cache"
	"bookvault/internal/common/errors"
	"bookvault/internal/common/jsonx"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/editions"
	"bookvault/internal/locks"
	"bookvault/internal/models"
	"bookvault/internal/providers"
	"bookvault/internal/redis"
	"bookvault/internal/storage"
	"bookvault/internal/workers"
)

type TieredCache struct {
	local     *cache.LocalCache
	remote    *cache.RedisCache // nil when Redis is not configured
	store     storage.Storage
	providers *providers.Registry
	resolver  *editions.Resolver
	linker    *editions.Linker
	pool      *workers.Pool
	locks     *locks.Manager // nil when Redis is not configured
	logger    logging.Logger

	memoryTTL time.Duration
	redisTTL  time.Duration
}

type Options struct {
	RedisClient *redis.Client // optional
	Store       storage.Storage
	Providers   *providers.Registry
	Resolver    *editions.Resolver
	Linker      *editions.Linker
	Pool        *workers.Pool
	Locks       *locks.Manager // optional
	Logger      logging.Logger
	MemoryTTL   time.Duration
	RedisTTL    time.Duration
}

func New(opts Options) *TieredCache {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	memoryTTL := opts.MemoryTTL
	if memoryTTL <= 0 {
		memoryTTL = 5 * time.Minute
	}
	redisTTL := opts.RedisTTL
	if redisTTL <= 0 {
		redisTTL = 24 * time.Hour
	}

	tc := &TieredCache{
		local:     cache.NewLocalCache(memoryTTL, memoryTTL),
		store:     opts.Store,
		providers: opts.Providers,
		resolver:  opts.Resolver,
		linker:    opts.Linker,
		pool:      opts.Pool,
		locks:     opts.Locks,
		logger:    logger,
		memoryTTL: memoryTTL,
		redisTTL:  redisTTL,
	}
	if opts.RedisClient != nil {
		tc.remote = cache.NewRedisCache(opts.RedisClient, "book:")
	}
	return tc
}

// GetBook walks the cascade for an ID that is either a canonical UUID
// or a provider external ID.
func (t *TieredCache) GetBook(ctx context.Context, id string) (*models.Book, error) {
	if id == "" {
		return nil, errors.ValidationError("book ID is required")
	}

	if cached := t.fromMemory(id); cached != nil {
		return &cached.Book, nil
	}

	if cached := t.fromRedis(ctx, id); cached != nil {
		t.setMemory(ctx, id, cached)
		t.touchAsync(cached.Book.ID)
		return &cached.Book, nil
	}

	if book := t.fromStore(ctx, id); book != nil {
		cached := models.NewCachedBook(*book)
		t.fillCaches(ctx, id, cached)
		t.touchAsync(book.ID)
		return book, nil
	}

	if book := t.fromProviders(ctx, id); book != nil {
		t.persistAsync(book)
		return book, nil
	}

	return nil, errors.NotFoundError("book")
}

// GetBookByISBN resolves through the store's ISBN index first and only
// then asks the providers.
func (t *TieredCache) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	normalized := utils.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, errors.ValidationError("ISBN is required")
	}

	canonicalID, err := t.store.FindByISBN(ctx, normalized)
	if err == nil {
		return t.GetBook(ctx, canonicalID)
	}
	if !errors.IsNotFound(err) {
		t.logger.Warn("ISBN store lookup failed, falling through to providers",
			logging.String("isbn", normalized),
			logging.String("error", err.Error()),
		)
	}

	book, err := t.providers.FetchByISBN(ctx, normalized)
	if err != nil {
		return nil, err
	}
	t.persistAsync(book)
	return book, nil
}

// Invalidate evicts one book from the memory and Redis tiers. The
// store record is untouched.
func (t *TieredCache) Invalidate(ctx context.Context, id string) error {
	_ = t.local.Delete(ctx, id)
	if t.remote != nil {
		if err := t.remote.Delete(ctx, id); err != nil {
			return errors.CacheError("failed to evict from redis", err)
		}
	}
	return nil
}

func (t *TieredCache) fromMemory(id string) *models.CachedBook {
	val, found := t.local.Get(context.Background(), id)
	if !found {
		return nil
	}
	cached, ok := val.(*models.CachedBook)
	if !ok {
		return nil
	}
	return cached
}

func (t *TieredCache) fromRedis(ctx context.Context, id string) *models.CachedBook {
	if t.remote == nil {
		return nil
	}
	raw, found := t.remote.GetRaw(ctx, id)
	if !found {
		return nil
	}
	var cached models.CachedBook
	if err := json.Unmarshal(raw, &cached); err != nil {
		// Entries written by older ingestion runs can hold concatenated
		// JSON objects; salvage the first decodable record before
		// giving up on the entry.
		if !jsonx.DecodeOne(raw, &cached) {
			t.logger.Warn("Corrupt cache entry, evicting",
				logging.String("id", id),
				logging.String("error", err.Error()),
			)
			_ = t.remote.Delete(ctx, id)
			return nil
		}
	}
	return &cached
}

// fromStore resolves the ID against the relational store. Canonical
// UUIDs load directly; anything else goes through the external-ID map.
// Store failures are soft and return nil.
func (t *TieredCache) fromStore(ctx context.Context, id string) *models.Book {
	canonicalID := id
	if !utils.IsCanonicalID(id) {
		canonicalID = t.mapExternalID(ctx, id)
		if canonicalID == "" {
			return nil
		}
	}

	book, err := t.store.GetBook(ctx, canonicalID)
	if err != nil {
		if !errors.IsNotFound(err) {
			t.logger.Warn("Store lookup failed, falling through",
				logging.String("id", canonicalID),
				logging.String("error", err.Error()),
			)
		}
		return nil
	}
	return book
}

func (t *TieredCache) mapExternalID(ctx context.Context, externalID string) string {
	for _, p := range t.providers.All() {
		canonicalID, err := t.store.FindByExternalID(ctx, p.Name(), externalID)
		if err == nil {
			return canonicalID
		}
		if !errors.IsNotFound(err) {
			t.logger.Warn("External-ID map lookup failed",
				logging.String("source", p.Name()),
				logging.String("external_id", externalID),
				logging.String("error", err.Error()),
			)
		}
	}
	return ""
}

// fromProviders asks each provider for the external ID, or by ISBN when
// the ID looks like one. Canonical UUIDs never reach providers.
func (t *TieredCache) fromProviders(ctx context.Context, id string) *models.Book {
	if utils.IsCanonicalID(id) {
		return nil
	}

	if normalized := utils.NormalizeISBN(id); len(normalized) == 10 || len(normalized) == 13 {
		if book, err := t.providers.FetchByISBN(ctx, normalized); err == nil {
			return book
		}
	}

	for _, p := range t.providers.All() {
		book, err := p.FetchByID(ctx, id)
		if err == nil {
			return book
		}
		if !errors.IsNotFound(err) {
			t.logger.Warn("Provider fetch failed",
				logging.String("provider", p.Name()),
				logging.String("id", id),
				logging.String("error", err.Error()),
			)
		}
	}
	return nil
}

// fillCaches writes a cached record to Redis and memory under the
// lookup key. Failures are logged, never returned.
func (t *TieredCache) fillCaches(ctx context.Context, key string, cached *models.CachedBook) {
	if t.remote != nil {
		if err := t.remote.Set(ctx, key, cached, t.redisTTL); err != nil {
			t.logger.Warn("Redis cache fill failed",
				logging.String("key", key),
				logging.String("error", err.Error()),
			)
		}
	}
	t.setMemory(ctx, key, cached)
}

func (t *TieredCache) setMemory(ctx context.Context, key string, cached *models.CachedBook) {
	_ = t.local.Set(ctx, key, cached, t.memoryTTL)
}

func (t *TieredCache) touchAsync(canonicalID string) {
	if t.pool == nil || canonicalID == "" {
		return
	}
	t.pool.Submit(workers.Task{
		Name: "touch-cached-book",
		Run: func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := t.store.TouchCachedBook(ctx, canonicalID); err != nil {
				t.logger.Debug("Touch failed",
					logging.String("id", canonicalID),
					logging.String("error", err.Error()),
				)
			}
		},
	})
}

// PersistAsync records a provider result fetched outside the cascade,
// such as a search hit, through the same background path.
func (t *TieredCache) PersistAsync(book *models.Book) {
	t.persistAsync(book)
}

// persistAsync hands a freshly fetched provider record to the worker
// pool: mint or find its canonical ID, upsert, relink its edition
// group, and fill both cache tiers. A Redis lock dedupes concurrent
// persistence of the same record; the duplicate foreground provider
// calls that raced are accepted.
func (t *TieredCache) persistAsync(book *models.Book) {
	if t.pool == nil {
		t.persist(context.Background(), book)
		return
	}
	// The caller keeps reading book after we return, so the pooled
	// task gets its own copy. persist writes ID and Edition.
	copied := *book
	if book.Edition != nil {
		edition := *book.Edition
		copied.Edition = &edition
	}
	t.pool.Submit(workers.Task{
		Name: "persist-book",
		Run: func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			t.persist(ctx, &copied)
		},
	})
}

func (t *TieredCache) persist(ctx context.Context, book *models.Book) {
	if t.locks != nil {
		lock, err := t.locks.AcquirePersistLock(ctx, book.Source+":"+book.ExternalID)
		if err != nil {
			t.logger.Warn("Persist lock error",
				logging.String("external_id", book.ExternalID),
				logging.String("error", err.Error()),
			)
		} else if lock == nil {
			// Another instance is already persisting this record.
			return
		} else {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	canonicalID, err := t.resolver.ResolveCanonicalID(ctx, book)
	if err != nil {
		t.logger.Error("Canonical ID resolution failed", err,
			logging.String("source", book.Source),
			logging.String("external_id", book.ExternalID),
		)
		return
	}
	book.ID = canonicalID

	if groupKey := editions.GroupKey(book); groupKey != "" {
		if book.Edition == nil {
			book.Edition = &models.EditionInfo{GroupKey: groupKey}
		} else {
			book.Edition.GroupKey = groupKey
		}
	}

	if _, err := t.store.UpsertBook(ctx, book); err != nil {
		t.logger.Error("Book upsert failed", err,
			logging.String("id", canonicalID),
		)
		return
	}

	cached := models.NewCachedBook(*book)
	if err := t.store.SaveCachedBook(ctx, cached); err != nil {
		t.logger.Warn("Cache metadata save failed",
			logging.String("id", canonicalID),
			logging.String("error", err.Error()),
		)
	}

	if book.Edition != nil && book.Edition.GroupKey != "" {
		if err := t.linker.Relink(ctx, book.Edition.GroupKey); err != nil {
			t.logger.Warn("Edition relink failed",
				logging.String("group", book.Edition.GroupKey),
				logging.String("error", err.Error()),
			)
		}
	}

	// Fill caches under both the canonical ID and the external ID the
	// caller used, so either key hits next time.
	t.fillCaches(ctx, canonicalID, cached)
	if book.ExternalID != "" && book.ExternalID != canonicalID {
		t.fillCaches(ctx, book.ExternalID, cached)
	}
}
