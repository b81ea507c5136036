// Package cache provides the two fast tiers of the book lookup cascade:
// an in-process cache and a Redis-backed distributed cache, plus a
// combined two-tier view. Both tiers are advisory; the relational store
// remains the source of truth and cached copies may be stale.
package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bookvault/internal/redis"
)

// maxLocalTTL caps how long entries live in the in-process tier so a
// stale local copy converges on the distributed tier's value.
const maxLocalTTL = 5 * time.Minute

// Cache defines the interface for a single cache tier.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return l.cache.Get(key)
}

// Set stores a value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// SetNX sets a value only if the key doesn't exist
func (l *LocalCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if _, found := l.cache.Get(key); found {
		return false, nil
	}
	l.cache.Set(key, value, ttl)
	return true, nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Clear removes all items from the local cache
func (l *LocalCache) Clear(ctx context.Context) error {
	l.cache.Flush()
	return nil
}

// Exists checks if a key exists
func (l *LocalCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}

// RedisCache is the distributed cache tier. Values are stored as JSON
// under a key prefix so several deployments can share one Redis.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache tier
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key)
	if err != nil {
		return nil, false
	}

	var result interface{}
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		// Not JSON, return the raw string
		return val, true
	}
	return result, true
}

// Set stores a value in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+key, data, ttl)
}

// SetNX sets a value only if the key doesn't exist
func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.keyPrefix+key, data, ttl)
}

// Delete removes a value from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Delete(ctx, r.keyPrefix+key)
}

// Clear removes all items with the key prefix from Redis
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Underlying().Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Underlying().Del(ctx, keys...).Err()
	}
	return nil
}

// Exists checks if a key exists
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	return r.client.Exists(ctx, r.keyPrefix+key)
}

// GetRaw retrieves the raw stored bytes for typed decoding.
func (r *RedisCache) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key)
	if err != nil {
		return nil, false
	}
	return []byte(val), true
}

// TwoTierCache combines the local and Redis tiers. Reads check L1 first
// and promote L2 hits into L1; writes go to L2 first as it outlives the
// process.
type TwoTierCache struct {
	l1 *LocalCache
	l2 *RedisCache
}

// NewTwoTierCache creates a cache with local L1 and Redis L2
func NewTwoTierCache(localTTL, cleanupInterval time.Duration, client *redis.Client, keyPrefix string) *TwoTierCache {
	return &TwoTierCache{
		l1: NewLocalCache(localTTL, cleanupInterval),
		l2: NewRedisCache(client, keyPrefix),
	}
}

// Get checks L1 first, then L2, promoting L2 hits into L1
func (t *TwoTierCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if val, found := t.l1.Get(ctx, key); found {
		return val, true
	}

	if val, found := t.l2.Get(ctx, key); found {
		_ = t.l1.Set(ctx, key, val, maxLocalTTL)
		return val, true
	}

	return nil, false
}

// Set stores in both tiers, L2 first
func (t *TwoTierCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l1.Set(ctx, key, value, capLocalTTL(ttl))
}

// SetNX sets a value only if the key doesn't exist in either tier
func (t *TwoTierCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return false, nil
	}

	acquired, err := t.l2.SetNX(ctx, key, value, ttl)
	if err != nil || !acquired {
		return acquired, err
	}

	_ = t.l1.Set(ctx, key, value, capLocalTTL(ttl))
	return true, nil
}

// Delete removes from both tiers
func (t *TwoTierCache) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

// Clear removes all items from both tiers
func (t *TwoTierCache) Clear(ctx context.Context) error {
	_ = t.l1.Clear(ctx)
	return t.l2.Clear(ctx)
}

// Exists checks if a key exists in either tier
func (t *TwoTierCache) Exists(ctx context.Context, key string) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

func capLocalTTL(ttl time.Duration) time.Duration {
	if ttl > maxLocalTTL {
		return maxLocalTTL
	}
	return ttl
}
