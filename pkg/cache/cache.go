package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the read-through cache used by the history queries. Values are stored as
// JSON, so Get decodes into dest the same way for every backend.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes keys matching a glob such as "history:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	Close() error
}

// Locker guards scheduled tasks so a single instance runs each tick.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// IsMiss reports whether err is a cache miss rather than a backend failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

var (
	_ Service = (*MemoryCache)(nil)
	_ Service = (*RedisCache)(nil)
	_ Service = (*LayeredCache)(nil)
	_ Locker  = (*MemoryCache)(nil)
	_ Locker  = (*RedisCache)(nil)
)
