// Package store implements the two durable-state adapters shared across
// the coordinator, sync engine, and healer: a best-effort Redis key-value
// cache, and a Postgres-backed single-blob-per-component durable store.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the shared key-value cache contract used for the canonical and
// mirror cache keys described in the spec (repo:*, cohesiveness:*,
// skipped:*, escalated:*, report:daily:*, metrics:*).
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisKV is a Redis-backed KV implementation, generalized from the
// Cerebra LLM gateway's budget-tracking cache wrapper to a plain
// get/set/delete/TTL cache used by every component here.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV creates a RedisKV connected to the given "host:port" address.
func NewRedisKV(ctx context.Context, addr string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisKV{client: client}, nil
}

// Close releases the underlying Redis connection pool.
func (k *RedisKV) Close() error {
	if k.client != nil {
		return k.client.Close()
	}
	return nil
}

// Get retrieves a value by key. The second return value is false if the
// key does not exist.
func (k *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := k.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores a key-value pair with the given TTL. A zero TTL means the key
// never expires.
func (k *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := k.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// Delete removes one or more keys. Missing keys are not an error.
func (k *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := k.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Client exposes the underlying Redis client for callers (e.g. the queue
// adapter) that need list/stream primitives beyond plain get/set.
func (k *RedisKV) Client() *redis.Client { return k.client }

// MemKV is an in-memory KV used in tests and as a local-dev fallback when
// Redis is unavailable. It does not enforce TTLs.
type MemKV struct {
	data map[string]string
}

// NewMemKV creates an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (m *MemKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *MemKV) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
