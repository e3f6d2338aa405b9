package pipeline

import (
	"errors"
	"time"

	"github.com/byteness/sentinel-authz/audit"
	"github.com/byteness/sentinel-authz/entitlement"
	"github.com/byteness/sentinel-authz/policy"
	"github.com/byteness/sentinel-authz/ratelimit"
	"github.com/byteness/sentinel-authz/risk"
	"github.com/byteness/sentinel-authz/session"
)

// deny401 builds the spec §6 401 body: {"error": "..."}.
func deny401(message, reason string) *Response {
	return &Response{Status: 401, Body: map[string]string{"error": message}, Reason: reason}
}

// deny403 builds the spec §6 403 body: {"error": "Forbidden"}.
func deny403(reason string) *Response {
	return &Response{Status: 403, Body: map[string]string{"error": "Forbidden"}, Reason: reason}
}

// terminated403 builds the spec §6 403 body used specifically for an
// active CRITICAL-risk revoke: {"message": "Session terminated"}.
func terminated403() *Response {
	return &Response{Status: 403, Body: map[string]string{"message": "Session terminated"}, Reason: "risk_critical"}
}

// throttled429 builds the spec §6 429 body.
func throttled429(retryAfter time.Duration) *Response {
	return &Response{Status: 429, Body: map[string]string{"error": "Too many requests, try again later"}, Reason: "rate_limit", RetryAfter: retryAfter}
}

// unavailable503 builds a dependency-outage response (spec §7: session
// store/audit queue unreachable → 503; audit failures are swallowed
// elsewhere and never reach this path).
func unavailable503(reason string) *Response {
	return &Response{Status: 503, Body: map[string]string{"error": "Service unavailable"}, Reason: reason}
}

// requireSession is pipeline step 1: resolve the session bound to the
// caller's credential. Absent or revoked (session.Store.Get does not
// distinguish the two, by design) yields 401; a store outage fails closed
// with 503 rather than 401, since the caller's credential may well be
// valid.
func requireSession(store session.Store, observed risk.ObservedStore) Step {
	return NewStepFunc("requireSession", func(req *Request) *Response {
		if req.Credentials.SessionID == "" {
			return deny401("Missing session", "missing_credential")
		}

		sess, err := store.Get(req.Ctx, req.Credentials.SessionID)
		if errors.Is(err, session.ErrNotFound) {
			return deny401("Session not found", "session_not_found")
		}
		if err != nil {
			return unavailable503("session_store_unavailable")
		}
		req.Session = sess

		if observed != nil {
			if prev, err := observed.Get(req.Ctx, sess.ID); err == nil {
				req.PrevObserved = prev
			}
		}
		return nil
	})
}

// enforceDeviceBinding is pipeline step 2: the caller's device-identifier
// header must match the device the session was created with.
func enforceDeviceBinding() Step {
	return NewStepFunc("enforceDeviceBinding", func(req *Request) *Response {
		if req.Session.DeviceID != "" && req.Credentials.DeviceID != req.Session.DeviceID {
			return deny401("Device mismatch", "device_mismatch")
		}
		return nil
	})
}

// continuousAccessEvaluation is pipeline step 3: score the current request
// against the session's last-observed context (C2 → C4). A CRITICAL result
// has already revoked the session and emitted SESSION_TERMINATED_HIGH_RISK
// by the time riskService.Evaluate returns; this step only needs to
// short-circuit the response.
func continuousAccessEvaluation(riskService *risk.Service, observed risk.ObservedStore) Step {
	return NewStepFunc("continuousAccessEvaluation", func(req *Request) *Response {
		now := time.Now()
		riskReq := risk.Request{
			IP:         req.Credentials.IP,
			DeviceID:   req.Credentials.DeviceID,
			UserAgent:  req.Credentials.UserAgent,
			Geo:        req.Credentials.Geo,
			Automation: req.Credentials.Automation,
			Posture:    req.Credentials.Posture,
		}

		profile, err := riskService.Evaluate(req.Ctx, req.Session, riskReq, req.PrevObserved, now)
		if err != nil {
			return unavailable503("session_store_unavailable")
		}
		req.RiskProfile = profile

		// riskService already persisted this via UpdateRisk/Revoke; mirror it
		// onto the in-memory session so buildPolicyInput (step 5) sees the
		// level computed just now, not the one session.Store.Get returned
		// before this evaluation ran.
		req.Session.RiskLevel = profile.Level

		if observed != nil {
			observed.Set(req.Ctx, req.Session.ID, risk.Observed{
				IP:        req.Credentials.IP,
				UserAgent: req.Credentials.UserAgent,
				Geo:       req.Credentials.Geo,
			})
		}

		if profile.Level == session.RiskCritical {
			return terminated403()
		}
		return nil
	})
}

// riskThrottle is pipeline step 4: a per-session request cap that scales
// down as risk rises (C5).
func riskThrottle(limiter ratelimit.RateLimiter) Step {
	return NewStepFunc("riskThrottle", func(req *Request) *Response {
		result, err := limiter.Allow(req.Ctx, req.Session.ID, req.RiskProfile.Level)
		if err != nil {
			// Fail closed: the limiter's dependency outage must not admit
			// traffic it cannot account for.
			return throttled429(ratelimit.Window)
		}
		if !result.Allowed {
			return throttled429(result.RetryAfter)
		}
		return nil
	})
}

// buildPolicyInput is pipeline step 5: assemble the fixed policy-input
// schema (C7) the policy engine will be asked to decide against.
func buildPolicyInput(entitlements entitlement.Store, tenants TenantLookup) Step {
	return NewStepFunc("buildPolicyInput", func(req *Request) *Response {
		projections, err := entitlement.BuildPolicyInput(req.Ctx, entitlements, req.Session.SubjectID, time.Now())
		if err != nil {
			return unavailable503("entitlement_store_unavailable")
		}

		tenant, err := tenants.Lookup(req.Ctx, req.Session.TenantID)
		if err != nil {
			return unavailable503("tenant_lookup_unavailable")
		}

		req.PolicyInput = policy.BuildInput(
			req.Session,
			tenant.Plan,
			tenant.Throttled,
			req.Credentials.Resource,
			req.Credentials.Action,
			projections,
			req.Credentials.Posture,
		)
		return nil
	})
}

// opaAuthorize is pipeline step 6: consult the policy engine (C6). A
// dependency outage and an explicit deny are indistinguishable at the wire
// boundary (spec §7: "policy engine → 403 deny"); policy.Client already
// degrades outages to Decision{Allow:false}, so this step never needs to
// special-case them.
func opaAuthorize(client policy.Client) Step {
	return NewStepFunc("opaAuthorize", func(req *Request) *Response {
		decision, err := client.Decide(req.Ctx, req.PolicyInput)
		if err != nil {
			return deny403("policy_error")
		}
		req.Decision = decision
		if !decision.Allow {
			reason := decision.Reason
			if reason == "" {
				reason = "policy_deny"
			}
			return deny403(reason)
		}
		return nil
	})
}

// auditDecision is pipeline step 7: append the terminal ALLOW record (C9).
// Every DENY outcome from an earlier step is audited centrally by
// Pipeline.Handle instead (see auditDeny), so this step only ever runs,
// and only ever writes, on the all-clear path.
func auditDecision(log *audit.Log) Step {
	return NewStepFunc("auditDecision", func(req *Request) *Response {
		log.Write(req.Ctx, audit.Record{
			SubjectID:     req.Session.SubjectID,
			SessionID:     req.Session.ID,
			Action:        req.Credentials.Action,
			Resource:      req.Credentials.Resource,
			Decision:      audit.DecisionAllow,
			PolicyPackage: req.Decision.Package,
			PolicyRule:    req.Decision.Rule,
			RiskLevel:     string(req.RiskProfile.Level),
			MFAVerified:   req.Session.MFAVerified,
			IP:            req.Credentials.IP,
			UserAgent:     req.Credentials.UserAgent,
			EvaluatedAt:   time.Now().UTC(),
		})
		return nil
	})
}
