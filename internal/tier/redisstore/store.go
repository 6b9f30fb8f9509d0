// Package redisstore backs the L3 distributed tier with a shared redis
// deployment. The store is treated as possibly-cold: a flushed or restarted
// redis simply produces misses.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/tier"
)

type Store struct {
	client *redis.Client
	prefix string
}

var _ tier.Store = (*Store)(nil)

func New(cfg *config.RedisCfg) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.KeyPrefix,
	}
}

// NewWithClient wires an externally constructed client, e.g. a cluster
// client or a test instance.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(partition, key string) string {
	if s.prefix == "" {
		return partition + ":" + key
	}
	return s.prefix + ":" + partition + ":" + key
}

func (s *Store) Get(ctx context.Context, partition, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, s.key(partition, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return payload, true, nil
}

func (s *Store) Set(ctx context.Context, partition, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(partition, key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, partition, key string) error {
	if err := s.client.Del(ctx, s.key(partition, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) HealthProbe(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
