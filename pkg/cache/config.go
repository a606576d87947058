package cache

import "time"

// RedisOption configures the Redis backend.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis connection settings. Every key is stored under Prefix.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	Prefix      string
}

func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) { c.Addr = addr }
}

func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) { c.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

// WithRedisPoolSize bounds connections shared by the query cache, task locks and the job queue.
func WithRedisPoolSize(n int) RedisOption {
	return func(c *RedisConfig) {
		if n > 0 {
			c.PoolSize = n
		}
	}
}

func WithRedisDialTimeout(d time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if d > 0 {
			c.DialTimeout = d
		}
	}
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// MemoryOption configures the in-process cache.
type MemoryOption func(*MemoryConfig)

type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if interval > 0 {
			c.CleanupInterval = interval
		}
	}
}

// LayeredOption configures the memory-over-Redis cache.
type LayeredOption func(*LayeredConfig)

type LayeredConfig struct {
	MemoryMaxSize int
	MemoryTTL     time.Duration
}

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) {
		if size > 0 {
			c.MemoryMaxSize = size
		}
	}
}

// WithLayeredMemoryTTL caps how long L1 may serve a history read without consulting Redis.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		if ttl > 0 {
			c.MemoryTTL = ttl
		}
	}
}
