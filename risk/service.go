package risk

import (
	"context"
	"log"
	"time"

	"github.com/byteness/sentinel-authz/session"
	"github.com/byteness/sentinel-authz/telemetry"
)

// AuditEmitter is the narrow audit contract this package depends on,
// mirroring session.AuditEmitter so risk need not import the audit package
// directly.
type AuditEmitter interface {
	Emit(ctx context.Context, eventType string, fields map[string]any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, map[string]any) {}

// Service binds a scoring Engine to enforcement against the session store
// (C4): a CRITICAL result terminates the session; anything else is
// persisted as the session's new risk level.
type Service struct {
	engine  *Engine
	store   session.Store
	audit   AuditEmitter
}

// NewService constructs a risk service. audit may be nil, in which case
// audit emission is a no-op (used by tests that don't exercise auditing).
func NewService(engine *Engine, store session.Store, audit AuditEmitter) *Service {
	if engine == nil {
		engine = DefaultEngine()
	}
	if audit == nil {
		audit = noopEmitter{}
	}
	return &Service{engine: engine, store: store, audit: audit}
}

// Evaluate scores the request against the session's bound device and last
// observed context, then enforces the result. On CRITICAL, it revokes the
// session and emits SESSION_TERMINATED_HIGH_RISK, and the caller
// short-circuits the request with 403; if the revoke itself fails, the
// error is returned with the profile and no audit event is emitted. On any
// other level, it persists the new risk level via UpdateRisk.
// Audit-emission failures never fail the evaluation itself.
func (s *Service) Evaluate(ctx context.Context, sess *session.Session, req Request, prev *Observed, now time.Time) (RiskProfile, error) {
	signals := Signals(req, sess.DeviceID, prev)
	profile := s.engine.Evaluate(sess.ID, sess.SubjectID, signals, now)
	telemetry.RiskEvaluationsTotal.WithLabelValues(string(profile.Level)).Inc()

	if profile.Level == session.RiskCritical {
		if err := s.store.Revoke(ctx, sess.ID); err != nil {
			log.Printf("risk: failed to revoke critical-risk session %s: %v", sess.ID, err)
			return profile, err
		}
		s.audit.Emit(ctx, "SESSION_TERMINATED_HIGH_RISK", map[string]any{
			"sessionId": sess.ID,
			"subjectId": sess.SubjectID,
			"score":     profile.Score,
			"signals":   profile.Signals,
		})
		return profile, nil
	}

	if err := s.store.UpdateRisk(ctx, sess.ID, profile.Level, now); err != nil {
		return profile, err
	}
	return profile, nil
}
