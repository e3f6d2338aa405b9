// Package pipeline assembles the authorization core's components (C1–C7,
// C9) into the single ordered request path (C8): an explicit array of
// steps, each implementing one capability, rather than a hook registry
// mutated at boot. Ordering is encoded in the array built by New, never in
// registration timing — see Step's doc comment.
package pipeline

import (
	"context"
	"time"

	"github.com/byteness/sentinel-authz/device"
	"github.com/byteness/sentinel-authz/policy"
	"github.com/byteness/sentinel-authz/risk"
	"github.com/byteness/sentinel-authz/session"
)

// Credentials is everything the transport layer (pipeline/httpglue, or any
// other framework-specific adapter) extracts from the inbound request
// before handing control to the pipeline. The pipeline itself is
// transport-agnostic: it never touches cookies or headers directly.
type Credentials struct {
	// SessionID identifies the session bound to the caller's access
	// credential. Verifying and extracting this from a signed token is the
	// authentication collaborator's job (out of scope, per spec's
	// Non-goal "Authentication itself"); the credential carrier's value is
	// treated as the session id directly.
	SessionID string

	DeviceID   string
	IP         string
	UserAgent  string
	Geo        string
	Automation bool

	// Posture is the caller device's self-reported security state, parsed
	// from the optional posture header by the transport adapter. nil when
	// the request carried none.
	Posture *device.DevicePosture

	Resource string
	Action   string
}

// TenantInfo is the tenant-scoped slice of the policy input schema (§4.6)
// that cannot be known until the session has resolved a tenant id, so it
// is looked up inside buildPolicyInput rather than carried on Credentials.
type TenantInfo struct {
	Plan      string
	Throttled bool
}

// TenantLookup resolves a tenant's plan and throttled state for policy
// input construction. No teacher or pack analog defines tenant billing
// state, so this is this module's own narrow seam — a static or
// config-backed implementation is enough for SPEC_FULL.md's scope.
type TenantLookup interface {
	Lookup(ctx context.Context, tenantID string) (TenantInfo, error)
}

// Request is one pipeline invocation: the credentials extracted from the
// inbound request, plus the mutable state each step attaches as it runs.
// A later step may read anything an earlier step populated; no step may
// run before its dependencies have populated the fields it reads (enforced
// by New's fixed step order, not by this struct).
type Request struct {
	Ctx context.Context

	Credentials Credentials

	// Session is populated by requireSession.
	Session *session.Session

	// PrevObserved is the session's last-observed context, populated by
	// requireSession (from risk.ObservedStore) for continuousAccessEvaluation
	// to diff against.
	PrevObserved *risk.Observed

	// RiskProfile is populated by continuousAccessEvaluation.
	RiskProfile risk.RiskProfile

	// PolicyInput is populated by buildPolicyInput.
	PolicyInput policy.Input

	// Decision is populated by opaAuthorize.
	Decision policy.Decision
}

// Response is a terminal outcome: a step that returns a non-nil Response
// short-circuits every step after it. The handler sees either this (already
// mapped to a wire response by the transport adapter) or, if every step
// returned nil, a populated Request ready to be handed to application code.
type Response struct {
	Status int
	Body   any

	// Reason is the audit-facing, machine-readable cause (e.g.
	// "device_mismatch", "rate_limit", "risk_critical"), independent of
	// Body's wire phrasing.
	Reason string

	// RetryAfter is set on 429 responses; zero otherwise.
	RetryAfter time.Duration
}

// Step is a single pipeline capability: inspect/mutate req, and either
// return nil (continue to the next step) or a Response (short-circuit).
// Steps never write to the wire directly; only the transport adapter
// translates a returned Response into bytes.
type Step interface {
	Name() string
	Apply(req *Request) *Response
}

// StepFunc adapts a plain function to the Step interface.
type StepFunc struct {
	name string
	fn   func(req *Request) *Response
}

// NewStepFunc builds a Step from a name and an Apply function.
func NewStepFunc(name string, fn func(req *Request) *Response) StepFunc {
	return StepFunc{name: name, fn: fn}
}

// Name implements Step.
func (s StepFunc) Name() string { return s.name }

// Apply implements Step.
func (s StepFunc) Apply(req *Request) *Response { return s.fn(req) }
