package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore backs Delivery when several gateway replicas share the
// ingestion path. SET NX gives the atomic first-claim semantics.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) MarkOnce(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, token, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisTokenStore) Release(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, token).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
