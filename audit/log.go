package audit

import (
	"context"
	"time"
)

// Log is the audit trail's single write path: every record appended
// through it is linked into the hash chain before being handed to the
// durable queue. It implements the narrow AuditEmitter interface each of
// session, risk, and entitlement depend on, so those packages never need
// to import this one.
type Log struct {
	chain *Chain
	queue *DurableQueue
}

// NewLog builds a Log starting its chain from seed (empty for a fresh
// chain) and persisting through queue.
func NewLog(seed string, queue *DurableQueue) *Log {
	return &Log{chain: NewChain(seed), queue: queue}
}

// NewSignedLog is like NewLog but HMAC-signs every record with hmacKey
// (SENTINEL_AUDIT_HMAC_KEY), via NewSignedChain.
func NewSignedLog(seed string, hmacKey []byte, queue *DurableQueue) (*Log, error) {
	chain, err := NewSignedChain(seed, hmacKey)
	if err != nil {
		return nil, err
	}
	return &Log{chain: chain, queue: queue}, nil
}

// Write links rec into the chain and persists it. The returned Record
// carries the assigned ID/ContentHash/PrevHash.
func (l *Log) Write(ctx context.Context, rec Record) (Record, error) {
	linked, err := l.chain.Link(rec)
	if err != nil {
		return Record{}, err
	}
	return linked, l.queue.Append(ctx, linked)
}

// Emit satisfies session.AuditEmitter / risk.AuditEmitter /
// entitlement.AuditEmitter. It translates their generic (eventType,
// fields) shape into a Record and writes it, swallowing any write error:
// per spec §4.1/§4.3, a transient audit-emission failure must never fail
// the session, risk, or entitlement operation it's describing — that
// operation has already committed by the time Emit is called.
func (l *Log) Emit(ctx context.Context, eventType string, fields map[string]any) {
	rec := Record{
		Action:      eventType,
		Decision:    eventDecision(eventType),
		EvaluatedAt: time.Now().UTC(),
	}
	if v, ok := fields["sessionId"].(string); ok {
		rec.SessionID = v
	}
	if v, ok := fields["subjectId"].(string); ok {
		rec.SubjectID = v
	}
	if v, ok := fields["riskLevel"].(string); ok {
		rec.RiskLevel = v
	}
	if v, ok := fields["reason"].(string); ok {
		rec.PolicyRule = v
	}
	if v, ok := fields["resource"].(string); ok {
		rec.Resource = v
	}

	l.Write(ctx, rec)
}

// eventDecision maps the ad hoc event-type strings used by callers
// (e.g. "SESSION_TERMINATED_HIGH_RISK", "ENTITLEMENT_REVOKED") to one of
// the fixed Decision values so the audit trail has a consistent outcome
// vocabulary regardless of which package emitted the event.
func eventDecision(eventType string) Decision {
	switch eventType {
	case "ENTITLEMENT_GRANTED":
		return DecisionGranted
	case "ENTITLEMENT_REVOKED", "SESSION_TERMINATED_HIGH_RISK", "SESSION_REVOKED", "SESSIONS_REVOKED_SUBJECT":
		return DecisionRevoked
	default:
		return DecisionDeny
	}
}
