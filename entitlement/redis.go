package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis-like backend, grounded on
// session.RedisStore's key+index pattern: `entitlement:{id}` holds the JSON
// record (no expiry — entitlements are lifecycle-managed by Status, not
// TTL), and `entitlement:subject:{subjectId}` is a SET of entitlement ids
// for ListBySubject.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed entitlement store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func entitlementKey(id string) string {
	return "entitlement:" + id
}

func subjectEntitlementIndexKey(subjectID string) string {
	return "entitlement:subject:" + subjectID
}

// Create implements Store. Returns ErrExists if id is already taken.
func (s *RedisStore) Create(ctx context.Context, e *Entitlement) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("entitlement: marshal: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, entitlementKey(e.ID), data, 0).Result()
	if err != nil {
		log.Printf("entitlement: redis error on create: %v", err)
		return fmt.Errorf("entitlement: redis unavailable: %w", err)
	}
	if !ok {
		return ErrExists
	}

	if err := s.rdb.SAdd(ctx, subjectEntitlementIndexKey(e.SubjectID), e.ID).Err(); err != nil {
		log.Printf("entitlement: redis error indexing by subject: %v", err)
		return fmt.Errorf("entitlement: redis unavailable: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Entitlement, error) {
	data, err := s.rdb.Get(ctx, entitlementKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		log.Printf("entitlement: redis error on get: %v", err)
		return nil, fmt.Errorf("entitlement: redis unavailable: %w", err)
	}

	var e Entitlement
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("entitlement: unmarshal: %w", err)
	}
	return &e, nil
}

// Update implements Store using the UpdatedAt field for optimistic locking:
// a write is rejected with ErrConcurrentModification if the stored record's
// UpdatedAt has moved past the caller's view of it.
func (s *RedisStore) Update(ctx context.Context, e *Entitlement) error {
	current, err := s.Get(ctx, e.ID)
	if err != nil {
		return err
	}
	if current.UpdatedAt.After(e.UpdatedAt) {
		return ErrConcurrentModification
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("entitlement: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, entitlementKey(e.ID), data, 0).Err(); err != nil {
		log.Printf("entitlement: redis error on update: %v", err)
		return fmt.Errorf("entitlement: redis unavailable: %w", err)
	}
	return nil
}

// ListBySubject implements Store, ordered by CreatedAt desc.
func (s *RedisStore) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Entitlement, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	ids, err := s.rdb.SMembers(ctx, subjectEntitlementIndexKey(subjectID)).Result()
	if err != nil {
		log.Printf("entitlement: redis error on smembers: %v", err)
		return nil, fmt.Errorf("entitlement: redis unavailable: %w", err)
	}

	out := make([]*Entitlement, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
