// Package ratelimit enforces a fixed-window request quota per caller.
// Authenticated requests are counted per token subject, anonymous ones
// per client address. Redis-backed when configured, with an in-memory
// fallback for single-instance deployments.
package ratelimit

import (
	"sync"
	"time"
)

// Decision reports the outcome of a single quota check.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(key string, limit int) Decision
}

// KeyFor builds the bucket key for a request. Authenticated callers get
// a bucket of their own so students behind a shared NAT do not throttle
// each other.
func KeyFor(subject, addr string) string {
	if subject != "" {
		return "sub:" + subject
	}
	return "ip:" + addr
}

// InMemoryLimiter counts requests in process memory.
type InMemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	hits    int
	expires time.Time
}

func NewInMemory(window time.Duration) *InMemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &InMemoryLimiter{
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

func (l *InMemoryLimiter) Allow(key string, limit int) Decision {
	now := time.Now().UTC()
	l.mu.Lock()
	b := l.buckets[key]
	if b == nil || !b.expires.After(now) {
		l.sweep(now)
		b = &bucket{expires: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.hits++
	hits, expires := b.hits, b.expires
	l.mu.Unlock()
	return verdict(hits, limit, expires)
}

// sweep drops expired buckets. Runs only when some bucket rolls over,
// which bounds the map to keys seen within one window.
func (l *InMemoryLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if !b.expires.After(now) {
			delete(l.buckets, k)
		}
	}
}

func verdict(hits, limit int, resetAt time.Time) Decision {
	if limit <= 0 {
		limit = 1
	}
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   hits <= limit,
		Count:     hits,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
