package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "muxsite:scope:"

// RedisBackend stores each scope as one Redis hash.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to addr and verifies the connection with PING.
func NewRedisBackend(addr, password string, db int) (*RedisBackend, error) {
	if addr == "" {
		return nil, errors.New("redis storage: address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// Scope returns the namespace for id.
func (b *RedisBackend) Scope(id string) (Storage, error) {
	if err := ValidateScope(id); err != nil {
		return nil, err
	}
	return &redisStorage{client: b.client, hash: redisKeyPrefix + id}, nil
}

// Close closes the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

type redisStorage struct {
	client *redis.Client
	hash   string
}

func (s *redisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %q: %w", key, err)
	}
	return value, true, nil
}

func (s *redisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %q: %w", key, err)
	}
	return nil
}

func (s *redisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %q: %w", key, err)
	}
	return nil
}
