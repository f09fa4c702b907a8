package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces all credential keys in Redis.
const DefaultRedisKeyPrefix = "authbridge:credentials:"

// Redis is a Backend storing values in Redis. It suits server-side agent
// deployments where several replicas share one credential jar.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Client is the Redis client instance. Required.
	Client *redis.Client

	// KeyPrefix is prepended to every key. Defaults to DefaultRedisKeyPrefix.
	KeyPrefix string
}

// NewRedis creates a Redis-backed store.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	return &Redis{client: cfg.Client, keyPrefix: keyPrefix}, nil
}

// Get retrieves the value for key. redis.Nil maps to absent.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry; cookie-level expiry is encoded
// in the record itself.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
