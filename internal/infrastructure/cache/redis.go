package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// RedisStore is the shared store used for idempotency keys and cached views
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info("✅ Redis connected", zap.String("addr", cfg.GetRedisAddr()))
	return client, nil
}

// NewRedisStore wraps a client; every key is namespaced with prefix
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Set stores a value with expiration
func (s *RedisStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, expiration).Err()
}

// SetNX stores the value only if the key is absent
func (s *RedisStore) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), value, expiration).Result()
}

// Get retrieves a value by key
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Exists reports whether key is present
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes keys
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// DeletePrefix removes every key starting with prefix using SCAN
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(prefix)+"*", 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Close is a no-op; the client is owned by the caller
func (s *RedisStore) Close() error {
	return nil
}
