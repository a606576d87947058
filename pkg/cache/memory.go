package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

// MemoryItem stores a JSON-encoded value with expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
}

// IsExpired checks if item has expired.
func (m *MemoryItem) IsExpired(now time.Time) bool {
	return now.After(m.ExpireAt)
}

// MemoryCache implements Service using in-memory storage with LRU eviction.
// Values round-trip through JSON so Get behaves like the Redis implementation.
type MemoryCache struct {
	data          map[string]*MemoryItem
	access        map[string]time.Time
	mutex         sync.Mutex
	maxSize       int
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
	now           func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:          make(map[string]*MemoryItem),
		access:        make(map[string]time.Time),
		maxSize:       cfg.MaxSize,
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.put(key, data, expiration)
	return nil
}

func (mc *MemoryCache) put(key string, data []byte, expiration time.Duration) {
	now := mc.now()
	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	if expiration <= 0 {
		expiration = 7 * 24 * time.Hour
	}
	mc.data[key] = &MemoryItem{Value: data, ExpireAt: now.Add(expiration)}
	mc.access[key] = now
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mutex.Lock()
	now := mc.now()
	item, exists := mc.data[key]
	if !exists || item.IsExpired(now) {
		if exists {
			delete(mc.data, key)
			delete(mc.access, key)
		}
		mc.mutex.Unlock()
		return ErrCacheMiss
	}
	mc.access[key] = now
	data := item.Value
	mc.mutex.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for key := range mc.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(mc.data, key)
			delete(mc.access, key)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if item, ok := mc.data[key]; ok && !item.IsExpired(mc.now()) {
		return false, nil
	}
	mc.put(key, []byte("locked"), ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, accessTime := range mc.access {
		if oldestKey == "" || accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.cleanupTicker.C:
		}

		mc.mutex.Lock()
		now := mc.now()
		for key, item := range mc.data {
			if item.IsExpired(now) {
				delete(mc.data, key)
				delete(mc.access, key)
			}
		}
		mc.mutex.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.cleanupTicker.Stop()
		close(mc.done)
	})
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
