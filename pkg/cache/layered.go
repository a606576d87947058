package cache

import (
	"context"
	"time"
)

// LayeredCache keeps hot history reads in process memory (L1) in front of the shared
// Redis cache (L2). Invalidation is applied to both layers, but another replica's L1 may
// serve a stale value for at most the L1 TTL.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    l2,
		l1TTL: cfg.MemoryTTL,
	}
}

// Set writes through to Redis first; L1 is only filled once L2 accepted the value.
func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, value, c.boundTTL(expiration))
	return nil
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := c.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, dest, c.l1TTL)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = c.l1.DeleteByPattern(ctx, pattern)
	return c.l2.DeleteByPattern(ctx, pattern)
}

// Close stops L1 only; the Redis client is owned by whoever created it.
func (c *LayeredCache) Close() error {
	return c.l1.Close()
}

func (c *LayeredCache) boundTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < c.l1TTL {
		return expiration
	}
	return c.l1TTL
}
