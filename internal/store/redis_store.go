package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	appredis "github.com/filmbot/letterboxd-bot/pkg/redis"
)

const scanBatchSize = 100

// RedisStore persists records as JSON blobs under "<namespace>:<key>".
type RedisStore struct {
	client *appredis.Client
	log    *slog.Logger
}

// NewRedisStore creates a Redis-backed implementation of Store.
func NewRedisStore(client *appredis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log}
}

// Get returns the record stored under namespace/key.
func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

// Set stores the record under namespace/key without expiry.
func (s *RedisStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes namespace/key and reports whether the key existed.
func (s *RedisStore) Delete(ctx context.Context, namespace, key string) (bool, error) {
	removed, err := s.client.Del(ctx, redisKey(namespace, key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return removed > 0, nil
}

// ScanKeys enumerates keys in the namespace starting with prefix, using
// cursor-based SCAN so large namespaces never block the server.
func (s *RedisStore) ScanKeys(ctx context.Context, namespace, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	pattern := redisKey(namespace, prefix) + "*"

	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, namespace+":"))
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func redisKey(namespace, key string) string {
	return namespace + ":" + key
}
