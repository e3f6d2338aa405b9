package policy

import "context"

// Decision is the outcome of a policy evaluation (C6's Decide contract:
// `{allow: bool, explain?: {package, rule}}`).
type Decision struct {
	Allow   bool   `json:"allow"`
	Package string `json:"package,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// CacheHit is observability-only: never consulted by pipeline control
	// flow, only read by telemetry. Grounded on breakglass/checker.go's
	// RateLimitResult pattern of returning a rich result struct instead of
	// a bare bool.
	CacheHit bool `json:"-"`
}

// Client is the policy engine contract (C6). Two backends satisfy it:
// RemoteClient (HTTP) and EmbeddedClient (sandboxed WASM module); the
// choice is invisible to callers. Remote timeouts or non-2xx responses
// return allow=false with an explanation rather than an error — the
// pipeline maps that to a 403 + audit DENY reason=policy_unavailable, never
// to a 5xx.
type Client interface {
	Decide(ctx context.Context, input Input) (Decision, error)
}
