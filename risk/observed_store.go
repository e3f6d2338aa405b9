package risk

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/byteness/sentinel-authz/session"
)

// ObservedStore persists the last-observed request context for a session,
// so continuousAccessEvaluation has something to diff the current request
// against. This is deliberately separate from session.Store: Observed is
// throwaway evaluation state, not part of the authoritative session record
// (see Observed's doc comment). Its lifetime is not tied to the session's:
// revoking a session leaves its entry in place.
type ObservedStore interface {
	// Get returns the last observed context for a session, or nil if this
	// is the session's first evaluated request.
	Get(ctx context.Context, sessionID string) (*Observed, error)

	// Set stores the context observed on the current request, to be
	// diffed against on the session's next evaluation. RedisObservedStore
	// expires the entry session.DefaultTTL after each Set.
	Set(ctx context.Context, sessionID string, obs Observed) error
}

// RedisObservedStore implements ObservedStore against a `session:{id}:ctx`
// key, mirroring the session package's own Redis key-naming convention.
type RedisObservedStore struct {
	rdb *redis.Client
	ttl func() int64 // seconds; defaults to session.DefaultTTL
}

// NewRedisObservedStore builds a Redis-backed observed-context store.
func NewRedisObservedStore(rdb *redis.Client) *RedisObservedStore {
	return &RedisObservedStore{rdb: rdb}
}

func observedKey(sessionID string) string {
	return "session:" + sessionID + ":ctx"
}

// Get implements ObservedStore.
func (s *RedisObservedStore) Get(ctx context.Context, sessionID string) (*Observed, error) {
	data, err := s.rdb.Get(ctx, observedKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var obs Observed
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, err
	}
	return &obs, nil
}

// Set implements ObservedStore.
func (s *RedisObservedStore) Set(ctx context.Context, sessionID string, obs Observed) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, observedKey(sessionID), data, session.DefaultTTL).Err()
}

var _ ObservedStore = (*RedisObservedStore)(nil)
