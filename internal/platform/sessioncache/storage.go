// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessioncache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by [Storage.Get] when the key holds nothing.
var ErrMiss = errors.New("sessioncache: miss")

// Storage is the byte store behind a [Cache]. Keys are already namespaced.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// # Redis Storage

// RedisStorage keeps entries in Redis with a server-side expiry.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage wraps an existing client.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Get returns [ErrMiss] for absent keys.
func (storage *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := storage.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis_session_cache_get_failed: %w", err)
	}
	return raw, nil
}

// Set writes value with the given expiry.
func (storage *RedisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := storage.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_session_cache_set_failed: %w", err)
	}
	return nil
}

// Del removes keys; missing keys are not an error.
func (storage *RedisStorage) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := storage.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis_session_cache_delete_failed: %w", err)
	}
	return nil
}

// # Memory Storage

// MemoryStorage is a process-local TTL map used when Redis is not configured
// and in tests.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStorage returns an empty [MemoryStorage].
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]memoryItem), now: time.Now}
}

// Get returns [ErrMiss] for absent or expired keys. Expired keys are dropped.
func (storage *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	storage.mu.Lock()
	defer storage.mu.Unlock()

	item, ok := storage.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if !item.expiresAt.IsZero() && !storage.now().Before(item.expiresAt) {
		delete(storage.items, key)
		return nil, ErrMiss
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (storage *MemoryStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	storage.mu.Lock()
	defer storage.mu.Unlock()

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = storage.now().Add(ttl)
	}
	storage.items[key] = item
	return nil
}

// Del removes keys; absent keys are ignored.
func (storage *MemoryStorage) Del(ctx context.Context, keys ...string) error {
	storage.mu.Lock()
	defer storage.mu.Unlock()

	for _, key := range keys {
		delete(storage.items, key)
	}
	return nil
}

// NewStorage uses Redis when the client answers a ping and falls back to
// memory otherwise (nil client, unreachable server).
func NewStorage(ctx context.Context, client *redis.Client) Storage {
	if client != nil {
		if err := client.Ping(ctx).Err(); err == nil {
			return NewRedisStorage(client)
		}
	}
	return NewMemoryStorage()
}
