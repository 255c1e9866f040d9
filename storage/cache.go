package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Backend with a Redis read-through cache. Writes go to the
// backend first and then evict the cached copy.
//
// Every key has a generation counter that Save bumps. A Load that misses
// watches the counter across its backend read and only caches what it read
// if no Save happened in between, so a slow read cannot put an older
// document back after a newer one was written.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Load(ctx context.Context, kind, key string) ([]byte, error) {
	if data, ok := c.loadFromCache(ctx, kind, key); ok {
		return data, nil
	}
	if c.redis == nil || c.ttl == 0 {
		return c.base.Load(ctx, kind, key)
	}
	var (
		data    []byte
		loadErr error
		loaded  bool
	)
	// A failed transaction (redis.TxFailedErr) means a Save raced this read;
	// the result is returned but not cached.
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, loadErr = c.base.Load(ctx, kind, key)
		loaded = true
		if loadErr != nil {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, cacheKey(kind, key), data, c.ttl)
			return nil
		})
		return err
	}, generationKey(kind, key))
	if !loaded {
		// Redis is unavailable; serve from the backing storage.
		return c.base.Load(ctx, kind, key)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return data, nil
}

func (c *Cache) Save(ctx context.Context, kind, key string, data []byte) error {
	if err := c.base.Save(ctx, kind, key, data); err != nil {
		return err
	}
	c.evict(ctx, kind, key)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, kind, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(kind, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, cacheKey(kind, key)).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) evict(ctx context.Context, kind, key string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		gen := generationKey(kind, key)
		p.Incr(ctx, gen)
		if c.ttl > 0 {
			p.Expire(ctx, gen, c.ttl)
		}
		p.Del(ctx, cacheKey(kind, key))
		return nil
	})
}

func cacheKey(kind, key string) string {
	return kind + ":" + key
}

func generationKey(kind, key string) string {
	return "gen:" + kind + ":" + key
}
