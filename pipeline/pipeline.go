package pipeline

import (
	"context"
	"time"

	"github.com/byteness/sentinel-authz/audit"
	"github.com/byteness/sentinel-authz/entitlement"
	"github.com/byteness/sentinel-authz/policy"
	"github.com/byteness/sentinel-authz/ratelimit"
	"github.com/byteness/sentinel-authz/risk"
	"github.com/byteness/sentinel-authz/session"
	"github.com/byteness/sentinel-authz/telemetry"
)

// Deps collects every collaborator the pipeline threads through its steps.
// One Deps is constructed once at process start (per "No in-process
// singletons beyond configuration") and reused across every request.
type Deps struct {
	Sessions     session.Store
	Observed     risk.ObservedStore
	RiskService  *risk.Service
	Limiter      ratelimit.RateLimiter
	Entitlements entitlement.Store
	Tenants      TenantLookup
	Policy       policy.Client
	Audit        *audit.Log
}

// Pipeline is the ordered, fixed sequence of steps C8 runs a request
// through. The order is exactly spec §4.7's seven steps; New is the only
// place that sequence is assembled.
type Pipeline struct {
	steps []Step
	audit *audit.Log
}

// New assembles the fixed seven-step pipeline from deps. The order here is
// the trust contract: requireSession and enforceDeviceBinding always run
// before any risk or policy evaluation, and opaAuthorize always runs after
// both continuousAccessEvaluation and riskThrottle, so a newly-terminated
// or newly-throttled session can never still reach a cached policy
// decision built from a stale risk level.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		audit: deps.Audit,
		steps: []Step{
			requireSession(deps.Sessions, deps.Observed),
			enforceDeviceBinding(),
			continuousAccessEvaluation(deps.RiskService, deps.Observed),
			riskThrottle(deps.Limiter),
			buildPolicyInput(deps.Entitlements, deps.Tenants),
			opaAuthorize(deps.Policy),
			auditDecision(deps.Audit),
		},
	}
}

// Handle runs creds through every step in order, stopping at the first
// Response any step produces. On the all-clear path req comes back fully
// populated (Session, RiskProfile, PolicyInput, Decision) and resp is nil;
// the caller is then free to serve its own handler-defined 200 body (S1).
//
// Cancellation: ctx is threaded into every step via req.Ctx; a step whose
// downstream call observes ctx.Done() returns its own failure response
// (503/403 per spec §5) rather than racing to still produce an ALLOW.
func (p *Pipeline) Handle(ctx context.Context, creds Credentials) (*Request, *Response) {
	req := &Request{Ctx: ctx, Credentials: creds}

	for _, step := range p.steps {
		resp := step.Apply(req)
		if resp == nil {
			continue
		}
		p.auditDeny(req, resp)
		return req, resp
	}
	return req, nil
}

// auditDeny centrally records every DENY outcome that wasn't already
// self-audited at the point it happened. continuousAccessEvaluation's
// CRITICAL path revokes and emits SESSION_TERMINATED_HIGH_RISK through
// risk.Service itself (it has to, to guarantee the revoke and the audit
// write are never separated by a later failure), so it's excluded here to
// avoid a duplicate record. Dependency-outage responses (503) are not
// audited: they describe the audit/session infrastructure being unreliable
// in the first place, and may lack a resolved subject to attribute the
// record to.
func (p *Pipeline) auditDeny(req *Request, resp *Response) {
	telemetry.PipelineDeniesTotal.WithLabelValues(resp.Reason).Inc()

	if p.audit == nil || resp.Status == 503 || resp.Reason == "risk_critical" {
		return
	}

	rec := audit.Record{
		Action:      req.Credentials.Action,
		Resource:    req.Credentials.Resource,
		Decision:    audit.DecisionDeny,
		PolicyRule:  resp.Reason,
		IP:          req.Credentials.IP,
		UserAgent:   req.Credentials.UserAgent,
		EvaluatedAt: time.Now().UTC(),
	}
	if req.Session != nil {
		rec.SessionID = req.Session.ID
		rec.SubjectID = req.Session.SubjectID
		rec.MFAVerified = req.Session.MFAVerified
	}
	if req.Decision.Package != "" {
		rec.PolicyPackage = req.Decision.Package
	}
	if req.RiskProfile.Level != "" {
		rec.RiskLevel = string(req.RiskProfile.Level)
	}
	p.audit.Write(req.Ctx, rec)
}
