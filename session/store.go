package session

import (
	"context"
	"errors"
	"time"
)

// Storage-related sentinel errors for Store implementations.
// These errors support errors.Is() checking for robust error handling.
var (
	// ErrNotFound is returned by Get when no live session exists for the id
	// (absent, expired, or revoked — the store does not distinguish these,
	// per spec's tagged-variant design note).
	ErrNotFound = errors.New("session not found")

	// ErrUnavailable wraps a transient backing-store error. The pipeline
	// treats this as fail-closed (503), per spec §4.1 failure semantics.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store is the authoritative session persistence contract (C1). Session
// keys are `session:{id}`; the subject index is a set at
// `subject:sessions:{subjectId}`. Implementations must be safe for
// concurrent use and must use atomic primitives (SET NX, SADD/SREM, batched
// DEL) since the store is shared across instances.
type Store interface {
	// Create generates an id, sets createdAt=now, expiresAt=now+TTL,
	// riskLevel=LOW, writes the session key with TTL, and adds the id to
	// the subject index with TTL = TTL + SubjectIndexSafetyMargin. Fails
	// only if the backing store is unreachable (ErrUnavailable).
	Create(ctx context.Context, subjectID, tenantID, deviceID string, mfaVerified bool) (*Session, error)

	// Get returns the current live session record, or ErrNotFound if it is
	// absent, expired, or revoked.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateRisk is a read-modify-write that preserves the session's
	// remaining TTL. It is a no-op (returns ErrNotFound) if the session no
	// longer exists; it must never recreate a vanished session.
	UpdateRisk(ctx context.Context, id string, level RiskLevel, evaluatedAt time.Time) error

	// Revoke deletes the session key, removes the id from the subject
	// index, and is idempotent: revoking an absent session is not an
	// error.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForSubject reads the subject's index set, deletes all
	// session keys in one batched operation, then deletes the index.
	// Returns the number of sessions revoked. Idempotent.
	RevokeAllForSubject(ctx context.Context, subjectID string) (int, error)
}
