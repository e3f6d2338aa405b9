package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuditEmitter is the narrow audit contract this package depends on, kept
// separate from the audit package to avoid a cross-package import cycle
// (audit.Sink never needs to know about session.Store). Failures from Emit
// are swallowed by the caller per spec §4.1: "transient errors on
// audit-emission from Revoke do not fail the revoke."
type AuditEmitter interface {
	Emit(ctx context.Context, eventType string, fields map[string]any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, map[string]any) {}

// RedisStore implements Store against a Redis-like backend (§6 key schema):
// `session:{uuid}` holds the JSON record with EX = session TTL;
// `subject:sessions:{subjectId}` is a SET of session ids with
// EX = session TTL + SubjectIndexSafetyMargin.
type RedisStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	audit AuditEmitter
}

// NewRedisStore creates a Redis-backed session store. ttl defaults to
// DefaultTTL if zero. audit may be nil, in which case revoke events are
// dropped silently (equivalent to a NopLogger).
func NewRedisStore(rdb *redis.Client, ttl time.Duration, audit AuditEmitter) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if audit == nil {
		audit = noopEmitter{}
	}
	return &RedisStore{rdb: rdb, ttl: ttl, audit: audit}
}

func sessionKey(id string) string {
	return "session:" + id
}

func subjectIndexKey(subjectID string) string {
	return "subject:sessions:" + subjectID
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, subjectID, tenantID, deviceID string, mfaVerified bool) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:              NewID(),
		SubjectID:       subjectID,
		TenantID:        tenantID,
		DeviceID:        deviceID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
		RiskLevel:       RiskLow,
		MFAVerified:     mfaVerified,
		LastEvaluatedAt: now,
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(sess.ID), data, s.ttl)
	pipe.SAdd(ctx, subjectIndexKey(subjectID), sess.ID)
	pipe.Expire(ctx, subjectIndexKey(subjectID), s.ttl+SubjectIndexSafetyMargin)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("session: redis error on create (failing closed): %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		log.Printf("session: redis error on get (failing closed): %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	if !sess.IsLive() {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// UpdateRisk implements Store. It is a read-modify-write that preserves the
// remaining TTL on the session key; it never recreates a vanished session.
func (s *RedisStore) UpdateRisk(ctx context.Context, id string, level RiskLevel, evaluatedAt time.Time) error {
	key := sessionKey(id)

	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		log.Printf("session: redis error on ttl (failing closed): %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl <= 0 {
		return ErrNotFound
	}

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		log.Printf("session: redis error on get (failing closed): %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("session: unmarshal: %w", err)
	}
	if !sess.IsLive() {
		return ErrNotFound
	}

	sess.RiskLevel = level
	sess.LastEvaluatedAt = evaluatedAt

	updated, err := json.Marshal(&sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	if err := s.rdb.Set(ctx, key, updated, ttl).Err(); err != nil {
		log.Printf("session: redis error on update (failing closed): %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Revoke implements Store. Idempotent: revoking an absent session succeeds.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, subjectIndexKey(sess.SubjectID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("session: redis error on revoke (failing closed): %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.audit.Emit(ctx, "SESSION_REVOKED", map[string]any{
		"sessionId": id,
		"subjectId": sess.SubjectID,
	})
	return nil
}

// RevokeAllForSubject implements Store. Batches the delete over a snapshot
// of the index set, per spec §5 ordering guarantees: a Create racing after
// the snapshot is read lands in a freshly created set and is not revoked,
// which is acceptable because it post-dates the revocation event.
func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, subjectIndexKey(subjectID)).Result()
	if err != nil {
		log.Printf("session: redis error on smembers (failing closed): %v", err)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, subjectIndexKey(subjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("session: redis error on revoke-all (failing closed): %v", err)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.audit.Emit(ctx, "SESSIONS_REVOKED_SUBJECT", map[string]any{
		"subjectId": subjectID,
		"count":     len(ids),
	})
	return len(ids), nil
}

var _ Store = (*RedisStore)(nil)
