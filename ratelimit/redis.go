package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byteness/sentinel-authz/session"
	"github.com/byteness/sentinel-authz/telemetry"
)

// RedisLimiter implements RateLimiter against `rate:{sessionId}` (§6): INCR
// the counter, and if the post-increment value is 1, set its expiry to
// Window. Unlike the teacher's DynamoDBRateLimiter, dependency outages here
// fail CLOSED (reject), per spec §7: "429 stays after limiter timeouts
// (fail-closed on the limiter)."
type RedisLimiter struct {
	rdb *redis.Client
}

// NewRedisLimiter creates a Redis-backed rate limiter.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func rateKey(sessionID string) string {
	return "rate:" + sessionID
}

// Allow implements RateLimiter.
func (r *RedisLimiter) Allow(ctx context.Context, sessionID string, level session.RiskLevel) (Result, error) {
	limit := LimitFor(level)
	now := time.Now()

	if limit == 0 {
		// CRITICAL sessions are rejected outright; defense in depth, the
		// pipeline should already have terminated the session.
		telemetry.RateLimitRejectionsTotal.WithLabelValues(string(level)).Inc()
		return Result{Allowed: false, Limit: 0, Remaining: 0, RetryAfter: Window, ResetAt: now.Add(Window)}, nil
	}

	key := rateKey(sessionID)
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("ratelimit: redis error (failing closed): %v", err)
		return Result{}, fmt.Errorf("ratelimit: redis unavailable: %w", err)
	}

	if count == 1 {
		if err := r.rdb.Expire(ctx, key, Window).Err(); err != nil {
			log.Printf("ratelimit: redis error setting expiry (failing closed): %v", err)
			return Result{}, fmt.Errorf("ratelimit: redis unavailable: %w", err)
		}
	}

	ttl, err := r.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = Window
	}
	resetAt := now.Add(ttl)

	if int(count) > limit {
		telemetry.RateLimitRejectionsTotal.WithLabelValues(string(level)).Inc()
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: ttl,
			ResetAt:    resetAt,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}

var _ RateLimiter = (*RedisLimiter)(nil)
