package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against `anti-replay:{sha256(nonce)}` (§6):
// the nonce itself is never persisted, only its hash, so a store
// compromise doesn't hand an attacker a plaintext replay catalogue.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed nonce store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func nonceKey(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return "anti-replay:" + hex.EncodeToString(sum[:])
}

// Reserve implements Store using SETNX semantics (SetNX + EX in one round
// trip): the first caller to claim a nonce gets true/nil, every later
// caller within ttl gets ErrReplayed, regardless of which instance
// serviced either call.
func (s *RedisStore) Reserve(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, nonceKey(nonce), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("replay: redis unavailable: %w", err)
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
