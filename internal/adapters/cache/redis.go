package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hxuan190/sor-engine/internal/adapters/persistence"
	"github.com/hxuan190/sor-engine/internal/domain"
)

const keyPrefix = "sor:snapshot:"

// RedisConfig holds connection parameters for the shared snapshot tier.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// RedisStore keeps encoded snapshots in Redis so several engine replicas
// share one view of the exchange.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects and pings. The caller owns Close.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client without pinging it.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func snapshotKey(key string) string {
	return keyPrefix + key
}

// Get returns nil, nil on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	snap, err := persistence.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return snap, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, snap *domain.Snapshot, ttl time.Duration) error {
	data, err := persistence.MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
