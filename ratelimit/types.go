// Package ratelimit implements the per-session, risk-adaptive request
// throttle (C5): a fixed 60s window counter whose cap depends on the
// session's current risk level.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/byteness/sentinel-authz/session"
)

// Window is the fixed rate-limit window.
const Window = 60 * time.Second

// DefaultLimit is used when a risk level has no configured cap (tie-break
// per spec §4.4: "default to 10").
const DefaultLimit = 10

// Limits maps risk level to the request cap for one Window. CRITICAL has no
// entry: the pipeline should already have terminated a CRITICAL session, so
// any CRITICAL request reaching the limiter is rejected outright as
// defense in depth.
var Limits = map[session.RiskLevel]int{
	session.RiskLow:    1000,
	session.RiskMedium: 200,
	session.RiskHigh:   20,
}

// LimitFor returns the request cap for a risk level.
func LimitFor(level session.RiskLevel) int {
	if level == session.RiskCritical {
		return 0
	}
	if n, ok := Limits[level]; ok {
		return n
	}
	return DefaultLimit
}

// RateLimiter is the throttling contract. Implementations must be safe for
// concurrent use and must not hold a lock across the external I/O call.
type RateLimiter interface {
	// Allow increments the counter for sessionID under its risk-level cap
	// and reports whether the request is admitted.
	Allow(ctx context.Context, sessionID string, level session.RiskLevel) (Result, error)
}

// Result carries the detailed outcome of a throttle check, in the teacher's
// rich-result-struct idiom (grounded on breakglass.RateLimitResult) rather
// than a bare boolean.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Config mirrors the teacher's sliding-window Config, retained for the
// in-memory fallback limiter (ratelimit.MemoryRateLimiter).
type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	BurstSize         int
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be positive, got %d", c.RequestsPerWindow)
	}
	if c.Window <= 0 {
		return fmt.Errorf("Window must be positive, got %v", c.Window)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("BurstSize cannot be negative, got %d", c.BurstSize)
	}
	return nil
}

// EffectiveBurstSize returns BurstSize if set, otherwise RequestsPerWindow.
func (c *Config) EffectiveBurstSize() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return c.RequestsPerWindow
}
