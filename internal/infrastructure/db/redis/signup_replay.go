package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultReplayTTL = 24 * time.Hour

// SignupReplayStore maps signup Idempotency-Keys to the user they created.
// Key format: idempotency:signup:<key>
type SignupReplayStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSignupReplayStore creates a store whose keys expire after ttl.
// A non-positive ttl falls back to defaultReplayTTL.
func NewSignupReplayStore(client redis.Cmdable, ttl time.Duration) *SignupReplayStore {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	return &SignupReplayStore{client: client, ttl: ttl}
}

// Lookup returns the user id recorded for key, if any.
func (s *SignupReplayStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return id, true, nil
}

// Remember records userID for key. The first writer wins; later calls for
// the same key keep the original value.
func (s *SignupReplayStore) Remember(ctx context.Context, key, userID string) error {
	if err := s.client.SetNX(ctx, s.key(key), userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

func (s *SignupReplayStore) key(key string) string {
	return fmt.Sprintf("idempotency:signup:%s", key)
}
