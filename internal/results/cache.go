package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/podium/internal/observe"
)

// DefaultCacheTTL is how long a recording stays in Redis after it was last
// written or read through the cache.
const DefaultCacheTTL = 10 * time.Minute

// DefaultCachePrefix is prepended to every Redis key written by [Cache].
const DefaultCachePrefix = "podium:recording:"

// CacheOption is a functional option for [NewCache].
type CacheOption func(*Cache)

// WithTTL sets the expiry of cached recordings. Non-positive values are ignored.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix overrides [DefaultCachePrefix].
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

var _ Store = (*Cache)(nil)

// Cache is a read-through, write-through Redis cache in front of another
// [Store]. Redis failures are logged and fall back to the backing store;
// they never fail a request that the backing store can serve.
type Cache struct {
	next   Store
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewCache wraps next with a Redis cache using rdb.
func NewCache(next Store, rdb redis.Cmdable, opts ...CacheOption) *Cache {
	c := &Cache{
		next:   next,
		rdb:    rdb,
		ttl:    DefaultCacheTTL,
		prefix: DefaultCachePrefix,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the Redis key used for recording id.
func (c *Cache) Key(id string) string {
	return c.prefix + id
}

// Save implements [Store.Save]. The recording is written to the backing
// store first and cached only when that succeeds.
func (c *Cache) Save(ctx context.Context, rec *Recording) error {
	if err := c.next.Save(ctx, rec); err != nil {
		return err
	}
	c.put(ctx, rec)
	return nil
}

// Get implements [Store.Get].
func (c *Cache) Get(ctx context.Context, id string) (*Recording, error) {
	data, err := c.rdb.Get(ctx, c.Key(id)).Bytes()
	switch {
	case err == nil:
		var rec Recording
		uerr := json.Unmarshal(data, &rec)
		if uerr == nil {
			return &rec, nil
		}
		observe.Logger(ctx).Warn("results: discarding corrupt cache entry", "id", id, "err", uerr)
	case errors.Is(err, redis.Nil):
	default:
		observe.Logger(ctx).Warn("results: cache get failed", "id", id, "err", err)
	}

	rec, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, rec)
	return rec, nil
}

// List implements [Store.List]. Listings are not cached.
func (c *Cache) List(ctx context.Context, opts ListOptions) ([]Recording, error) {
	return c.next.List(ctx, opts)
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("results: redis ping: %w", err)
	}
	return nil
}

func (c *Cache) put(ctx context.Context, rec *Recording) {
	data, err := json.Marshal(rec)
	if err != nil {
		observe.Logger(ctx).Warn("results: encode cache entry", "id", rec.ID, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, c.Key(rec.ID), data, c.ttl).Err(); err != nil {
		observe.Logger(ctx).Warn("results: cache set failed", "id", rec.ID, "err", err)
	}
}
