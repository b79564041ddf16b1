package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"go-exchange-rate-updater"
)

// RedisStore shares cached results between instances through Redis
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithPrefix namespaces every key, "exchange-rates" by default
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "exchange-rates",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]updater.ExchangeRate, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get: %v", updater.ErrCacheUnavailable, err)
	}

	var rates []updater.ExchangeRate
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, false, fmt.Errorf("%w: decoding %s: %v", updater.ErrCacheUnavailable, key, err)
	}
	return rates, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, rates []updater.ExchangeRate, ttl time.Duration) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("encoding rates: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", updater.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping checks that Redis answers
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", updater.ErrCacheUnavailable, err)
	}
	return nil
}
