// Package replay rejects request replay: a (nonce, timestamp) pair that has
// already been admitted once must never be admitted again within its
// validity window, even when requests land on different process instances
// sharing the same backing store (C1's Redis, same as session/ratelimit).
package replay

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a nonce is remembered. A caller presenting a
// timestamp older than DefaultTTL is rejected independent of the store
// (see Checker.Check), so this is also the outer bound on clock skew this
// package tolerates.
const DefaultTTL = 5 * time.Minute

// ErrReplayed is returned by Store.Reserve when the nonce has already been
// seen, whether by this call or an earlier one (possibly on another
// instance).
var ErrReplayed = errors.New("replay: nonce already used")

// ErrExpired is returned by Checker.Check when the caller's timestamp falls
// outside the tolerated skew window, before any store round-trip.
var ErrExpired = errors.New("replay: timestamp outside validity window")

// Store is the nonce-reservation contract (anti-replay key schema, §6:
// `anti-replay:{sha256(nonce)}`, SETNX sentinel, EX = TTL). Implementations
// must make Reserve atomic: concurrent callers racing on the same nonce
// must have exactly one succeed.
type Store interface {
	// Reserve atomically claims nonce for ttl. It returns ErrReplayed if
	// the nonce was already reserved (by this or a prior call) and is
	// still within its TTL; nil on first use.
	Reserve(ctx context.Context, nonce string, ttl time.Duration) error
}

// Checker wraps a Store with the timestamp-skew check spec'd for testable
// property 7: a stale timestamp is rejected before it ever reaches the
// store, so an attacker replaying a very old (nonce, ts) pair can't even
// spend a round-trip probing for whether the nonce was seen.
type Checker struct {
	store Store
	ttl   time.Duration
}

// NewChecker builds a Checker. A zero ttl defaults to DefaultTTL.
func NewChecker(store Store, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checker{store: store, ttl: ttl}
}

// Check rejects a replayed or stale (nonce, ts) pair, and otherwise reserves
// nonce for the Checker's TTL so a later attempt with the same nonce is
// rejected by Store.Reserve, even from a different process sharing the
// store.
func (c *Checker) Check(ctx context.Context, nonce string, ts time.Time, now time.Time) error {
	if now.Sub(ts) > c.ttl || ts.Sub(now) > c.ttl {
		return ErrExpired
	}
	return c.store.Reserve(ctx, nonce, c.ttl)
}
