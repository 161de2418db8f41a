// Package cache keeps synthesized baseline waveforms in Redis so repeated
// renders of the same text skip the remote synthesis call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by [Store.Get] when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL is the lifetime of cached entries. Zero means no expiry.
	TTL time.Duration

	// Prefix is prepended to every key. Default: "emotivox:".
	Prefix string
}

// Store is a thin byte-oriented wrapper around a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore connects to Redis as described by cfg. The connection is lazy;
// use [Store.Ping] to verify it.
func NewStore(cfg Config) *Store {
	return NewStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewStoreWithClient wraps an existing client. Addr, Password and DB in cfg
// are ignored.
func NewStoreWithClient(client *redis.Client, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "emotivox:"
	}
	return &Store{client: client, ttl: cfg.TTL, prefix: prefix}
}

// Get returns the value stored under key or [ErrMiss].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	return s.client.Del(ctx, full...).Err()
}

// Ping checks the connection. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
