package ratelimit

import (
	"sync"
	"time"

	xhttp "CryptoArchive/pkg/http"

	"github.com/labstack/echo/v4"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket. Buckets are created full.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	refill   float64 // tokens per second
	now      func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		m:        make(map[string]*bucket),
		capacity: capacity,
		refill:   refillPerSec,
		now:      time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware rejects requests with 429 once the caller's IP has drained its bucket.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
