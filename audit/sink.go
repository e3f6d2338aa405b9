package audit

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/byteness/sentinel-authz/logging"
)

// Store is an append-only sink for completed, hash-chained records. A Store
// must never reorder or mutate records: the chain's PrevHash linkage
// depends on append order being preserved exactly.
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// LogStore appends records as structured log lines via a logging.Logger,
// satisfying SENTINEL_AUDIT_LOG_PATH="-" (stdout) from internal/config.
type LogStore struct {
	logger logging.Logger
}

// NewLogStore wraps logger as a Store.
func NewLogStore(logger logging.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, rec Record) error {
	s.logger.LogStep(logging.StepOutcome{
		Timestamp: rec.EvaluatedAt,
		Step:      "audit",
		SessionID: rec.SessionID,
		SubjectID: rec.SubjectID,
		Outcome:   string(rec.Decision),
		Reason:    rec.PolicyRule,
		Fields: map[string]any{
			"id":            rec.ID,
			"prevHash":      rec.PrevHash,
			"action":        rec.Action,
			"resource":      rec.Resource,
			"policyPackage": rec.PolicyPackage,
			"riskLevel":     rec.RiskLevel,
			"mfaVerified":   rec.MFAVerified,
			"ip":            rec.IP,
			"userAgent":     rec.UserAgent,
		},
	})
	return nil
}

// RedisStore appends each record as an element of a Redis list, giving the
// chain durable storage shared across sentineld instances. Order within
// the list matches append order, preserving chain verifiability.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore returns a Store that RPUSHes records onto key.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "audit:log"
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, s.key, data).Err()
}

// Tail returns the last n records appended to key, oldest first.
func (s *RedisStore) Tail(ctx context.Context, n int64) ([]Record, error) {
	raw, err := s.rdb.LRange(ctx, s.key, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
