// Package session manages the authoritative, TTL-bounded session record that
// the authorization pipeline reads and mutates on every request.
//
// # Session lifecycle
//
// A session is created by the authentication collaborator on successful
// login and lives until it is explicitly revoked or its TTL elapses. Unlike
// the teacher's terminal-status state machine, a session here has no
// "revoked" status value to read back: Revoke deletes the record outright,
// so Get returning absent IS the revoked (or expired, or never-existed)
// state. See Store.Get's tagged-variant-shaped return.
//
// # Session ID Format
//
// Session IDs are UUIDs (github.com/google/uuid), unguessable and large
// enough that collision and enumeration are not practical concerns.
package session

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the session lifetime from creation. Sessions use a fixed TTL
// from creation, not a sliding window: UpdateRisk preserves ExpiresAt
// exactly as set by Create. See SPEC_FULL.md open question decision #2.
const DefaultTTL = 8 * time.Hour

// SubjectIndexSafetyMargin is added to DefaultTTL when setting the expiry of
// a subject's session-index set, so the index always outlives every session
// id it might still contain.
const SubjectIndexSafetyMargin = 60 * time.Second

// RiskLevel is the coarse risk bucket assigned by the risk engine.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// IsValid returns true if the RiskLevel is a known value.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// String returns the string representation of the RiskLevel.
func (l RiskLevel) String() string {
	return string(l)
}

// Session is the authoritative record of an authenticated, device-bound
// principal. Mutated in place only for RiskLevel and LastEvaluatedAt;
// otherwise immutable. RedisStore never sets RevokedAt: its Revoke deletes
// the record.
type Session struct {
	ID              string    `json:"id"`
	SubjectID       string    `json:"subjectId"`
	TenantID        string    `json:"tenantId"`
	DeviceID        string    `json:"deviceId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	RevokedAt       *time.Time `json:"revokedAt,omitempty"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	MFAVerified     bool      `json:"mfaVerified"`
	LastEvaluatedAt time.Time `json:"lastEvaluatedAt"`
}

// IsLive reports whether the session record is live: it exists and has not
// been revoked. Expiry is enforced by the store's TTL, so a record fetched
// from the store is by construction unexpired.
func (s *Session) IsLive() bool {
	return s != nil && s.RevokedAt == nil
}

// NewID generates a new session id.
func NewID() string {
	return uuid.NewString()
}
