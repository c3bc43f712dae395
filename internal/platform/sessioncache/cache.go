// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sessioncache is a short-TTL, externally stored mirror of computed values.

Values are stored as a JSON envelope carrying the time they were fetched. A
read returns nothing when the entry is missing, unparsable or at least TTL old.

Behavior:

  - Passive: no semantic filtering. Deciding whether a value is worth caching
    is the caller's job.
  - Forgiving: a corrupt entry is a miss, never an error, and the next Set
    overwrites it.
  - Bounded: entries also carry a storage-side expiry equal to the TTL so
    abandoned keys are reclaimed.
*/
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Entry is the stored envelope.
type Entry[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache reads and writes typed entries on a [Storage].
type Cache[T any] struct {
	storage Storage
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a [Cache].
type Option[T any] func(*Cache[T])

// WithClock replaces time.Now, mostly for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(cache *Cache[T]) {
		cache.now = now
	}
}

// WithLogger sets the logger used for storage failures.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(cache *Cache[T]) {
		cache.logger = logger
	}
}

// New builds a cache whose entries live for ttl.
func New[T any](storage Storage, ttl time.Duration, options ...Option[T]) *Cache[T] {
	cache := &Cache[T]{
		storage: storage,
		ttl:     ttl,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// TTL returns the validity window of an entry.
func (cache *Cache[T]) TTL() time.Duration {
	return cache.ttl
}

// Get returns the value under key if present, parsable and younger than the TTL.
func (cache *Cache[T]) Get(ctx context.Context, key string) (Entry[T], bool) {
	var entry Entry[T]

	raw, err := cache.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			cache.logger.WarnContext(ctx, "session_cache_read_failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
		return entry, false
	}

	if err := json.Unmarshal(raw, &entry); err != nil {
		cache.logger.DebugContext(ctx, "session_cache_entry_malformed", slog.String("key", key))
		return entry, false
	}

	if entry.FetchedAt.IsZero() || cache.now().Sub(entry.FetchedAt) >= cache.ttl {
		return entry, false
	}

	return entry, true
}

// Set stores value under key stamped with the current time.
func (cache *Cache[T]) Set(ctx context.Context, key string, value T) error {
	return cache.SetEntry(ctx, key, Entry[T]{Value: value, FetchedAt: cache.now()})
}

// SetEntry stores a prepared entry. Its remaining lifetime sets the storage expiry.
func (cache *Cache[T]) SetEntry(ctx context.Context, key string, entry Entry[T]) error {
	remaining := cache.ttl - cache.now().Sub(entry.FetchedAt)
	if remaining <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("session_cache_encode_failed: %w", err)
	}

	return cache.storage.Set(ctx, key, raw, remaining)
}

// Clear removes every given key.
func (cache *Cache[T]) Clear(ctx context.Context, keys ...string) error {
	return cache.storage.Del(ctx, keys...)
}
