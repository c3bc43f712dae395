// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessioncache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
)

type snapshot struct {
	Country string `json:"country"`
	Banned  bool   `json:"banned"`
}

// fakeClock is a manually advanced clock.
type fakeClock struct{ current time.Time }

func (clock *fakeClock) Now() time.Time { return clock.current }
func (clock *fakeClock) Advance(step time.Duration) { clock.current = clock.current.Add(step) }

func newClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

/*
TestCache_RoundTripAndExpiry covers the valid window and the age >= TTL boundary.
*/
func TestCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	cache := sessioncache.New[snapshot](sessioncache.NewMemoryStorage(), 5*time.Minute, sessioncache.WithClock[snapshot](clock.Now))

	require.NoError(t, cache.Set(ctx, "profile_check_acc-1", snapshot{Country: "JP"}))

	entry, ok := cache.Get(ctx, "profile_check_acc-1")
	require.True(t, ok)
	assert.Equal(t, "JP", entry.Value.Country)
	assert.True(t, entry.FetchedAt.Equal(clock.Now()))

	clock.Advance(5*time.Minute - time.Second)
	_, ok = cache.Get(ctx, "profile_check_acc-1")
	assert.True(t, ok, "entry is still inside its window")

	clock.Advance(time.Second)
	_, ok = cache.Get(ctx, "profile_check_acc-1")
	assert.False(t, ok, "age equal to TTL is expired")
}

/*
TestCache_MissingKey returns absent without error.
*/
func TestCache_MissingKey(t *testing.T) {
	cache := sessioncache.New[snapshot](sessioncache.NewMemoryStorage(), time.Minute)

	_, ok := cache.Get(context.Background(), "profile_check_nobody")
	assert.False(t, ok)
}

/*
TestCache_MalformedEntryIsMissAndRepaired ensures corrupt bytes never fail a read
and are replaced by the next successful set.
*/
func TestCache_MalformedEntryIsMissAndRepaired(t *testing.T) {
	ctx := context.Background()
	storage := sessioncache.NewMemoryStorage()
	cache := sessioncache.New[snapshot](storage, time.Minute)

	corrupt := [][]byte{
		[]byte("{not json"),
		[]byte(`{"value":{"country":"JP"}}`), // no fetched_at
		[]byte(`"just a string"`),
	}

	for _, raw := range corrupt {
		require.NoError(t, storage.Set(ctx, "profile_check_acc-1", raw, time.Minute))
		_, ok := cache.Get(ctx, "profile_check_acc-1")
		assert.False(t, ok, "corrupt entry %q must be a miss", raw)
	}

	require.NoError(t, cache.Set(ctx, "profile_check_acc-1", snapshot{Country: "FR"}))
	entry, ok := cache.Get(ctx, "profile_check_acc-1")
	require.True(t, ok)
	assert.Equal(t, "FR", entry.Value.Country)
}

/*
TestCache_Clear removes several keys at once.
*/
func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache := sessioncache.New[snapshot](sessioncache.NewMemoryStorage(), time.Minute)

	require.NoError(t, cache.Set(ctx, "a", snapshot{}))
	require.NoError(t, cache.Set(ctx, "b", snapshot{}))

	require.NoError(t, cache.Clear(ctx, "a", "b", "never-set"))

	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)
}

/*
TestCache_SetEntryAlreadyExpired is a no-op rather than writing a dead entry.
*/
func TestCache_SetEntryAlreadyExpired(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	storage := sessioncache.NewMemoryStorage()
	cache := sessioncache.New[snapshot](storage, time.Minute, sessioncache.WithClock[snapshot](clock.Now))

	old := sessioncache.Entry[snapshot]{FetchedAt: clock.Now().Add(-2 * time.Minute)}
	require.NoError(t, cache.SetEntry(ctx, "stale", old))

	_, err := storage.Get(ctx, "stale")
	assert.ErrorIs(t, err, sessioncache.ErrMiss)
}

/*
TestRedisStorage_RoundTrip runs the cache on miniredis and checks the server-side expiry.
*/
func TestRedisStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	server, client := newMiniredis(t)

	cache := sessioncache.New[snapshot](sessioncache.NewRedisStorage(client), 5*time.Minute)
	require.NoError(t, cache.Set(ctx, "profile_check_acc-1", snapshot{Country: "VN"}))

	entry, ok := cache.Get(ctx, "profile_check_acc-1")
	require.True(t, ok)
	assert.Equal(t, "VN", entry.Value.Country)

	ttl := server.TTL("profile_check_acc-1")
	assert.Greater(t, ttl, 4*time.Minute)
	assert.LessOrEqual(t, ttl, 5*time.Minute)

	server.FastForward(6 * time.Minute)
	_, ok = cache.Get(ctx, "profile_check_acc-1")
	assert.False(t, ok)
}

/*
TestRedisStorage_CorruptValue treats garbage written by another writer as a miss.
*/
func TestRedisStorage_CorruptValue(t *testing.T) {
	ctx := context.Background()
	server, client := newMiniredis(t)
	require.NoError(t, server.Set("profile_check_acc-1", "garbage"))

	cache := sessioncache.New[snapshot](sessioncache.NewRedisStorage(client), time.Minute)
	_, ok := cache.Get(ctx, "profile_check_acc-1")
	assert.False(t, ok)
}

/*
TestRedisStorage_ReadFailureIsMiss keeps a dead Redis from failing reads.
*/
func TestRedisStorage_ReadFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	server, client := newMiniredis(t)
	cache := sessioncache.New[snapshot](sessioncache.NewRedisStorage(client), time.Minute)

	server.Close()

	_, ok := cache.Get(ctx, "profile_check_acc-1")
	assert.False(t, ok)
	assert.Error(t, cache.Set(ctx, "profile_check_acc-1", snapshot{}))
}

/*
TestNewStorage_Fallback picks Redis when reachable and memory otherwise.
*/
func TestNewStorage_Fallback(t *testing.T) {
	ctx := context.Background()

	_, ok := sessioncache.NewStorage(ctx, nil).(*sessioncache.MemoryStorage)
	assert.True(t, ok, "nil client falls back to memory")

	unreachable := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 5 * time.Millisecond,
		ReadTimeout: 5 * time.Millisecond,
	})
	defer unreachable.Close()
	_, ok = sessioncache.NewStorage(ctx, unreachable).(*sessioncache.MemoryStorage)
	assert.True(t, ok, "unreachable redis falls back to memory")

	_, client := newMiniredis(t)
	_, ok = sessioncache.NewStorage(ctx, client).(*sessioncache.RedisStorage)
	assert.True(t, ok, "reachable redis is used")
}

/*
TestMemoryStorage covers copies, expiry and deletes of absent keys.
*/
func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	storage := sessioncache.NewMemoryStorage()

	value := []byte("JP")
	require.NoError(t, storage.Set(ctx, "kept", value, 0))
	value[0] = 'X'

	got, err := storage.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, []byte("JP"), got)

	require.NoError(t, storage.Set(ctx, "short", []byte("VN"), 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := storage.Get(ctx, "short")
		return errors.Is(err, sessioncache.ErrMiss)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, storage.Del(ctx, "kept", "absent"))
	_, err = storage.Get(ctx, "kept")
	assert.ErrorIs(t, err, sessioncache.ErrMiss)
}
