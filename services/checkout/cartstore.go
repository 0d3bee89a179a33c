package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CartStore holds the live cart for a storefront session. The snapshot
// inside an order never changes after checkout; this is the mutable cart
// the reconciler clears exactly once after a successful payment.
type CartStore interface {
	Clear(ctx context.Context, sessionID string) error
}

// RedisCartStore implements CartStore on Redis, keyed cart:<session id>.
type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client}
}

func (s *RedisCartStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
