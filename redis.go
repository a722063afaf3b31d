package cookiesession

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore records revocations as Redis keys expiring with the session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client. Close closes the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedisStore connects to Redis at addr and verifies the connection.
func DialRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	now := time.Now()
	if !expiresAt.After(now) {
		return nil // Already expired
	}

	key := revokedKeyPrefix + id
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, now.Unix(), 0)
	pipe.ExpireAt(ctx, key, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query redis: %w", err)
	}
	return n > 0, nil
}

// Cleanup is a no-op for Redis as keys expire automatically.
func (s *RedisStore) Cleanup(ctx context.Context) error {
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
