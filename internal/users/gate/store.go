// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
	"github.com/taibuivan/profilegate/internal/platform/singleflight"
)

// Publisher fans an invalidation out to other replicas.
type Publisher interface {
	PublishInvalidation(ctx context.Context, accountID string) error
}

// slot holds the per-account in-memory state.
//
// generation is bumped by every invalidation. A fetch captures it before
// reading the backend and may only commit if it is unchanged.
type slot struct {
	snapshot   *Attributes
	generation uint64
	fetching   int
}

/*
Store is the single authority on gating attributes.

Resolution order for [Store.Attributes]:

 1. A fresh, cache-worthy in-memory snapshot is returned as is.
 2. An outstanding fetch for the account is joined.
 3. A fresh, cache-worthy entry in the session cache is adopted.
 4. Otherwise one backend fetch runs and every concurrent caller shares it.

A failed fetch yields the [FailOpen] snapshot, which is never stored.
*/
type Store struct {
	backend   Backend
	cache     *sessioncache.Cache[Attributes]
	flight    *singleflight.Group[Attributes]
	publisher Publisher
	observers []func(accountID string)
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	ttl       time.Duration

	mu    sync.Mutex
	slots map[string]*slot

	// persist orders session cache writes against invalidations.
	persist sync.RWMutex
}

// StoreOption customises a [Store].
type StoreOption func(*Store)

// WithPublisher broadcasts invalidations to other replicas.
func WithPublisher(publisher Publisher) StoreOption {
	return func(store *Store) {
		store.publisher = publisher
	}
}

// WithObserver registers fn to run after an account's snapshot is dropped,
// whether the invalidation started on this replica or arrived from another.
func WithObserver(fn func(accountID string)) StoreOption {
	return func(store *Store) {
		store.observers = append(store.observers, fn)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(store *Store) {
		store.now = now
	}
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) StoreOption {
	return func(store *Store) {
		store.tracer = tracer
	}
}

// NewStore creates a store. The snapshot TTL is taken from cache.
func NewStore(backend Backend, cache *sessioncache.Cache[Attributes], logger *slog.Logger, options ...StoreOption) *Store {
	store := &Store{
		backend: backend,
		cache:   cache,
		flight:  singleflight.New[Attributes](),
		logger:  logger,
		tracer:  otel.Tracer("github.com/taibuivan/profilegate/internal/users/gate"),
		now:     time.Now,
		ttl:     cache.TTL(),
		slots:   make(map[string]*slot),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

// # Resolution

/*
Attributes returns the snapshot for accountID.

Parameters:
  - ctx: bounds only this caller's wait
  - accountID: authenticated account
  - forceRefresh: skip the in-memory and persisted snapshots

Returns:
  - Attributes: resolved or fail-open snapshot
  - bool: false only when ctx ended before an answer was available
*/
func (store *Store) Attributes(ctx context.Context, accountID string, forceRefresh bool) (Attributes, bool) {
	if !forceRefresh {
		if snapshot, ok := store.freshSnapshot(accountID); ok {
			return snapshot, true
		}
	}

	// Join an outstanding fetch before looking at the persisted copy.
	if store.flight.Waiters(accountID) == 0 && !forceRefresh {
		if snapshot, ok := store.adoptPersisted(ctx, accountID); ok {
			return snapshot, true
		}
	}

	attributes, err := store.flight.Resolve(ctx, accountID, store.fetch(accountID))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return Attributes{}, false
		}
		store.logger.WarnContext(ctx, "gate_fetch_failed_fail_open",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return FailOpen(accountID, store.now()), true
	}

	return attributes, true
}

// Cached returns a cache-worthy snapshot from memory or the session cache
// without ever reaching the backend.
func (store *Store) Cached(ctx context.Context, accountID string) (Attributes, bool) {
	if snapshot, ok := store.freshSnapshot(accountID); ok {
		return snapshot, true
	}
	return store.adoptPersisted(ctx, accountID)
}

// Prefetch resolves accountID in the background. It joins a fetch that is already running.
func (store *Store) Prefetch(ctx context.Context, accountID string) {
	go store.Attributes(context.WithoutCancel(ctx), accountID, false)
}

// Peek returns the in-memory snapshot, cache-worthy or not, if it is younger than the TTL.
func (store *Store) Peek(accountID string) (Attributes, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	current, ok := store.slots[accountID]
	if !ok || current.snapshot == nil || !store.fresh(*current.snapshot) {
		return Attributes{}, false
	}
	return *current.snapshot, true
}

// Waiters reports how many callers are waiting on an outstanding fetch for accountID.
func (store *Store) Waiters(accountID string) int {
	return store.flight.Waiters(accountID)
}

func (store *Store) freshSnapshot(accountID string) (Attributes, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	current, ok := store.slots[accountID]
	if !ok || current.snapshot == nil {
		return Attributes{}, false
	}

	snapshot := *current.snapshot
	if !snapshot.CacheWorthy() || !store.fresh(snapshot) {
		return Attributes{}, false
	}
	return snapshot, true
}

func (store *Store) adoptPersisted(ctx context.Context, accountID string) (Attributes, bool) {
	store.persist.RLock()
	defer store.persist.RUnlock()

	entry, ok := store.cache.Get(ctx, cacheKey(accountID))
	if !ok || entry.Value.AccountID != accountID || !entry.Value.CacheWorthy() {
		return Attributes{}, false
	}

	snapshot := entry.Value
	snapshot.FetchedAt = entry.FetchedAt

	store.mu.Lock()
	store.slotLocked(accountID).snapshot = &snapshot
	store.mu.Unlock()

	return snapshot, true
}

func (store *Store) fetch(accountID string) singleflight.Producer[Attributes] {
	return func(ctx context.Context) (Attributes, error) {
		generation := store.beginFetch(accountID)
		defer store.endFetch(accountID)

		ctx, span := store.tracer.Start(ctx, "gate.fetch_attributes",
			trace.WithAttributes(attribute.String("account.id", accountID)),
		)
		defer span.End()

		fields, err := store.backend.FetchGateFields(ctx, accountID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
			return Attributes{}, fmt.Errorf("gate_fetch_attributes: %w", err)
		}

		attributes := Derive(accountID, fields, store.now())
		span.SetAttributes(
			attribute.Bool("gate.profile_complete", attributes.ProfileComplete),
			attribute.Bool("gate.banned", attributes.IsBanned),
		)

		store.commit(ctx, accountID, generation, attributes)
		return attributes, nil
	}
}

// commit publishes a fetched snapshot unless an invalidation happened since
// the fetch started.
func (store *Store) commit(ctx context.Context, accountID string, generation uint64, attributes Attributes) {
	store.persist.Lock()
	defer store.persist.Unlock()

	store.mu.Lock()
	current := store.slotLocked(accountID)
	if current.generation != generation {
		store.mu.Unlock()
		store.logger.DebugContext(ctx, "gate_stale_fetch_discarded", slog.String("account_id", accountID))
		return
	}
	current.snapshot = &attributes
	store.mu.Unlock()

	if !attributes.CacheWorthy() {
		return
	}

	entry := sessioncache.Entry[Attributes]{Value: attributes, FetchedAt: attributes.FetchedAt}
	if err := store.cache.SetEntry(ctx, cacheKey(accountID), entry); err != nil {
		store.logger.WarnContext(ctx, "gate_cache_write_failed",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
	}
}

// # Invalidation

/*
Invalidate drops every cached view of accountID: the in-memory snapshot, the
outstanding fetch registration and the persisted entries. Other replicas are
notified when a publisher is configured.

A fetch already in progress may still finish, but its result is discarded.
*/
func (store *Store) Invalidate(ctx context.Context, accountID string) error {
	store.persist.Lock()
	store.drop(accountID)
	err := store.cache.Clear(ctx, persistedKeys(accountID)...)
	store.persist.Unlock()

	if err != nil {
		return fmt.Errorf("gate_invalidate_clear_failed: %w", err)
	}

	if store.publisher != nil {
		if err := store.publisher.PublishInvalidation(ctx, accountID); err != nil {
			store.logger.WarnContext(ctx, "gate_invalidate_publish_failed",
				slog.String("account_id", accountID),
				slog.Any("error", err),
			)
		}
	}

	store.notify(accountID)
	store.logger.InfoContext(ctx, "gate_attributes_invalidated", slog.String("account_id", accountID))
	return nil
}

// DropLocal forgets the in-memory state for accountID on this replica only.
func (store *Store) DropLocal(accountID string) {
	store.persist.Lock()
	store.drop(accountID)
	store.persist.Unlock()

	store.notify(accountID)
}

func (store *Store) notify(accountID string) {
	for _, observer := range store.observers {
		observer(accountID)
	}
}

func (store *Store) drop(accountID string) {
	store.mu.Lock()
	current := store.slotLocked(accountID)
	current.generation++
	current.snapshot = nil
	store.mu.Unlock()

	store.flight.Forget(accountID)
}

// # Housekeeping

// Sweep drops expired snapshots and idle slots. It returns how many slots were removed.
func (store *Store) Sweep() int {
	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0
	for accountID, current := range store.slots {
		if current.fetching > 0 {
			continue
		}
		if current.snapshot != nil && store.fresh(*current.snapshot) {
			continue
		}
		delete(store.slots, accountID)
		removed++
	}
	return removed
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (store *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.SnapshotSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(); removed > 0 {
				store.logger.DebugContext(ctx, "gate_snapshots_swept", slog.Int("removed", removed))
			}
		}
	}
}

// # Internals

func (store *Store) fresh(attributes Attributes) bool {
	return store.now().Sub(attributes.FetchedAt) < store.ttl
}

func (store *Store) slotLocked(accountID string) *slot {
	current, ok := store.slots[accountID]
	if !ok {
		current = &slot{}
		store.slots[accountID] = current
	}
	return current
}

func (store *Store) beginFetch(accountID string) uint64 {
	store.mu.Lock()
	defer store.mu.Unlock()

	current := store.slotLocked(accountID)
	current.fetching++
	return current.generation
}

func (store *Store) endFetch(accountID string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if current, ok := store.slots[accountID]; ok {
		current.fetching--
	}
}

func cacheKey(accountID string) string {
	return constants.CachePrefixProfileCheck + accountID
}

func persistedKeys(accountID string) []string {
	return []string{
		constants.CachePrefixProfileCheck + accountID,
		constants.CachePrefixCountryCheck + accountID,
		constants.CachePrefixDOBCheck + accountID,
	}
}
