package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/privacycheck/privacycheck/internal/report"
)

// DefaultRedisKey is the key the history list is stored under.
const DefaultRedisKey = "privacycheck:reportHistory"

// RedisStore keeps the whole history as one JSON value under a single key,
// the same shape extension sync storage uses.
type RedisStore struct {
	client *redis.Client
	key    string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts.Key), nil
}

// NewRedisStoreWithClient wraps an existing client. An empty key uses
// DefaultRedisKey.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Get returns the stored history; a missing key is an empty history.
func (s *RedisStore) Get(ctx context.Context) ([]report.Report, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []report.Report{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}

	var reports []report.Report
	if err := json.Unmarshal(val, &reports); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return reports, nil
}

// Set overwrites the stored history.
func (s *RedisStore) Set(ctx context.Context, reports []report.Report) error {
	data, err := json.Marshal(Trim(reports))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the history key.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", s.key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
