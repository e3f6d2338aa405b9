package policy

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byteness/sentinel-authz/telemetry"
)

// RedisDecisionCache wraps a Client with a shared, Redis-backed decision
// cache keyed at `opa:{fingerprint}` (§6), for multi-instance deployments
// where CachedClient's in-process map would let every instance warm its
// own copy of the same decision. A Redis error degrades to calling through
// to the wrapped client uncached rather than failing the request — the
// decision cache is a latency optimization, not part of the trust
// boundary.
type RedisDecisionCache struct {
	rdb    *redis.Client
	client Client
	ttl    time.Duration
}

// NewRedisDecisionCache wraps client with a Redis-backed cache of at most
// ttl per entry. Per spec §4.5, ttl should be ≤ 5s.
func NewRedisDecisionCache(rdb *redis.Client, client Client, ttl time.Duration) *RedisDecisionCache {
	return &RedisDecisionCache{rdb: rdb, client: client, ttl: ttl}
}

func decisionKey(fingerprint string) string {
	return "opa:" + fingerprint
}

// Decide returns the cached decision for input's fingerprint when present,
// otherwise calls through to the wrapped client and caches the result.
func (c *RedisDecisionCache) Decide(ctx context.Context, input Input) (Decision, error) {
	key, err := Fingerprint(input)
	if err != nil {
		return Decision{}, err
	}
	rkey := decisionKey(key)

	if raw, err := c.rdb.Get(ctx, rkey).Result(); err == nil {
		var d Decision
		if json.Unmarshal([]byte(raw), &d) == nil {
			telemetry.PolicyDecisionCacheTotal.WithLabelValues("hit").Inc()
			d.CacheHit = true
			return d, nil
		}
	} else if err != redis.Nil {
		log.Printf("policy: redis decision cache read error (falling through): %v", err)
	}

	telemetry.PolicyDecisionCacheTotal.WithLabelValues("miss").Inc()
	decision, err := c.client.Decide(ctx, input)
	if err != nil {
		return Decision{}, err
	}

	if data, err := json.Marshal(decision); err == nil {
		if err := c.rdb.Set(ctx, rkey, data, c.ttl).Err(); err != nil {
			log.Printf("policy: redis decision cache write error (ignoring): %v", err)
		}
	}

	return decision, nil
}

// Invalidate removes input's cached decision, if any.
func (c *RedisDecisionCache) Invalidate(ctx context.Context, input Input) error {
	key, err := Fingerprint(input)
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, decisionKey(key)).Err()
}
