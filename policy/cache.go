package policy

import (
	"context"
	"sync"
	"time"

	"github.com/byteness/sentinel-authz/telemetry"
)

// cacheEntry holds a cached decision with its expiration time.
type cacheEntry struct {
	decision Decision
	expiry   time.Time
}

// CachedClient wraps a Client with in-memory, fingerprint-keyed, TTL-based
// caching (C6's decision cache). Grounded on the teacher's double-checked
// locking CachedLoader (read-lock fast path, write-lock populate with a
// second check), generalized from an SSM-parameter-name key to a
// canonicalized input fingerprint. Safe for concurrent use.
type CachedClient struct {
	client Client
	mu     sync.RWMutex
	cache  map[string]*cacheEntry
	ttl    time.Duration
}

// NewCachedClient wraps client with caching for at most ttl per entry. Per
// spec §4.5, ttl should be ≤ 5s.
func NewCachedClient(client Client, ttl time.Duration) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  make(map[string]*cacheEntry),
		ttl:    ttl,
	}
}

// Decide returns the cached decision for input's fingerprint when fresh,
// otherwise calls through to the wrapped client and caches the result.
// Errors are not cached.
func (c *CachedClient) Decide(ctx context.Context, input Input) (Decision, error) {
	key, err := Fingerprint(input)
	if err != nil {
		return Decision{}, err
	}

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expiry) {
		c.mu.RUnlock()
		telemetry.PolicyDecisionCacheTotal.WithLabelValues("hit").Inc()
		d := entry.decision
		d.CacheHit = true
		return d, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expiry) {
		telemetry.PolicyDecisionCacheTotal.WithLabelValues("hit").Inc()
		d := entry.decision
		d.CacheHit = true
		return d, nil
	}

	telemetry.PolicyDecisionCacheTotal.WithLabelValues("miss").Inc()
	decision, err := c.client.Decide(ctx, input)
	if err != nil {
		return Decision{}, err
	}

	c.cache[key] = &cacheEntry{decision: decision, expiry: time.Now().Add(c.ttl)}
	return decision, nil
}

// Invalidate removes input's cached decision, if any. Called when an
// out-of-band signal (entitlement revoke, session revoke, risk escalation)
// makes a cached allow unsafe to keep serving.
func (c *CachedClient) Invalidate(input Input) error {
	key, err := Fingerprint(input)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
	return nil
}
