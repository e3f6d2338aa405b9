package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter is a process-local fallback limiter for tests and
// single-instance deployments without a shared Redis, built on
// golang.org/x/time/rate (the teacher carries this transitively via
// golang.org/x/time/rate; promoted here to direct use). It does not
// implement the distributed RateLimiter contract — no shared state crosses
// instances — and must never be wired into a multi-instance deployment of
// the pipeline.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewTokenBucketLimiter creates a limiter allowing rps requests per second
// per key, with the given burst.
func NewTokenBucketLimiter(rps float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key is permitted right now.
func (t *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	t.mu.Lock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.limiters[key] = l
	}
	t.mu.Unlock()
	return l.Allow()
}
