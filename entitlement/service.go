package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SessionRevoker is the narrow session-store contract this package depends
// on, mirroring the session.AuditEmitter pattern elsewhere in this module:
// entitlement must not import the session package's full Store interface
// just to invalidate a subject's sessions on revoke.
type SessionRevoker interface {
	RevokeAllForSubject(ctx context.Context, subjectID string) (int, error)
}

// AuditEmitter is the narrow audit contract this package depends on.
type AuditEmitter interface {
	Emit(ctx context.Context, eventType string, fields map[string]any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, map[string]any) {}

// Service implements EntitlementService (C10): granting, revoking, and
// projecting entitlements for policy input construction.
type Service struct {
	store      Store
	sessions   SessionRevoker
	audit      AuditEmitter
	newBackOff func() backoff.BackOff
}

// NewService constructs an entitlement service. audit may be nil, in which
// case audit emission is a no-op.
func NewService(store Store, sessions SessionRevoker, audit AuditEmitter) *Service {
	if audit == nil {
		audit = noopEmitter{}
	}
	return &Service{
		store:      store,
		sessions:   sessions,
		audit:      audit,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Grant creates a new active entitlement for a subject.
func (s *Service) Grant(ctx context.Context, subjectType SubjectType, subjectID, resourceType, resourceID string, scopes []string, grantedBy, reason string, validUntil *time.Time) (*Entitlement, error) {
	now := time.Now()
	e := &Entitlement{
		ID:           NewID(),
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Scopes:       scopes,
		Status:       StatusActive,
		ValidFrom:    now,
		ValidUntil:   validUntil,
		GrantedBy:    grantedBy,
		GrantReason:  reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, "ENTITLEMENT_GRANTED", map[string]any{
		"entitlementId": e.ID,
		"subjectId":     e.SubjectID,
		"resourceType":  e.ResourceType,
		"resourceId":    e.ResourceID,
		"scopes":        e.Scopes,
		"grantedBy":     e.GrantedBy,
	})
	return e, nil
}

// Revoke marks an entitlement REVOKED and invalidates every live session
// held by its subject, on the principle that a revoked entitlement must
// never remain reachable through a cached session's policy input. Revoking
// the entitlement record without also tearing down the subject's sessions
// would let a stale session keep passing policy checks indefinitely, so a
// session-store failure is retried a few times and, if it still fails,
// returned to the caller instead of being swallowed: the caller must know
// that re-authorization has not actually been forced yet.
func (s *Service) Revoke(ctx context.Context, id, revokedBy, reason string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	e.Status = StatusRevoked
	e.RevokedAt = &now
	e.UpdatedAt = now
	if err := s.store.Update(ctx, e); err != nil {
		return err
	}

	revokedSessions, sessErr := backoff.Retry(ctx, func() (int, error) {
		return s.sessions.RevokeAllForSubject(ctx, e.SubjectID)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(3))

	fields := map[string]any{
		"entitlementId": e.ID,
		"subjectId":     e.SubjectID,
		"revokedBy":     revokedBy,
		"reason":        reason,
	}
	if sessErr != nil {
		fields["sessionRevokeError"] = sessErr.Error()
		s.audit.Emit(ctx, "ENTITLEMENT_REVOKED", fields)
		return fmt.Errorf("entitlement %s marked revoked but failed to revoke subject %s's sessions after retries: %w", e.ID, e.SubjectID, sessErr)
	}

	fields["sessionsRevoked"] = revokedSessions
	s.audit.Emit(ctx, "ENTITLEMENT_REVOKED", fields)
	return nil
}
