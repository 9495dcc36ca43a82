package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/harborapp/telemetry/internal/domain/providers"
	redisclient "github.com/harborapp/telemetry/internal/infrastructure/clients/redis"
)

// RedisStore implements the StateStore interface on Redis. Meant for
// server-side embeddings of the SDK where the host already runs next to a
// redis and local disk is ephemeral.
type RedisStore struct {
	client *redisclient.Client
	prefix string
}

// NewRedisStore creates a redis-backed store. The prefix namespaces keys so
// several application instances can share one redis; empty means no prefix.
func NewRedisStore(client *redisclient.Client, prefix string) providers.StateStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get retrieves the value for a key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Client().Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, providers.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state key %s: %w", key, err)
	}
	return value, nil
}

// Set writes the value for a key. State keys do not expire; queue and dedup
// pruning is the owning component's job.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Client().Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Client().Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete state key %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
