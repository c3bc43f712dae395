// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

const ttl = 5 * time.Minute

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeBackend serves fields from a map and counts fetches. When hold is set,
// a fetch snapshots its fields, signals entered, then waits for hold to close.
type fakeBackend struct {
	mu      sync.Mutex
	fields  map[string]gate.Fields
	err     error
	hold    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func newBackend() *fakeBackend {
	return &fakeBackend{fields: make(map[string]gate.Fields)}
}

func (backend *fakeBackend) FetchGateFields(ctx context.Context, accountID string) (gate.Fields, error) {
	backend.calls.Add(1)

	backend.mu.Lock()
	fields, err, hold, entered := backend.fields[accountID], backend.err, backend.hold, backend.entered
	backend.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	return fields, err
}

func (backend *fakeBackend) set(accountID string, fields gate.Fields) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.fields[accountID] = fields
}

func (backend *fakeBackend) fail(err error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.err = err
}

// block makes subsequent fetches wait; the returned func releases them.
func (backend *fakeBackend) block() (entered <-chan struct{}, release func()) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	hold := make(chan struct{})
	signal := make(chan struct{}, 16)
	backend.hold, backend.entered = hold, signal

	var once sync.Once
	return signal, func() {
		once.Do(func() {
			backend.mu.Lock()
			backend.hold, backend.entered = nil, nil
			backend.mu.Unlock()
			close(hold)
		})
	}
}

func (backend *fakeBackend) fetches() int {
	return int(backend.calls.Load())
}

// fakeClock is a manually advanced clock safe for concurrent readers.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.current
}

func (clock *fakeClock) Advance(step time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.current = clock.current.Add(step)
}

type fixture struct {
	backend *fakeBackend
	clock   *fakeClock
	cache   *sessioncache.Cache[gate.Attributes]
	store   *gate.Store
}

func newFixture(t *testing.T, storage sessioncache.Storage, options ...gate.StoreOption) *fixture {
	t.Helper()

	if storage == nil {
		storage = sessioncache.NewMemoryStorage()
	}

	clock := newClock()
	backend := newBackend()
	cache := sessioncache.New[gate.Attributes](storage, ttl, sessioncache.WithClock[gate.Attributes](clock.Now))
	options = append([]gate.StoreOption{gate.WithClock(clock.Now)}, options...)

	return &fixture{
		backend: backend,
		clock:   clock,
		cache:   cache,
		store:   gate.NewStore(backend, cache, discard, options...),
	}
}

func completeFields() gate.Fields {
	country := "JP"
	dob := time.Date(1995, 7, 14, 0, 0, 0, 0, time.UTC)
	return gate.Fields{
		Country:     &country,
		DateOfBirth: &dob,
		Role:        sec.RoleMember,
		DisplayName: "Tai",
		Handle:      "tai",
		AvatarURL:   "https://cdn.example.com/tai.png",
	}
}

func withoutCountry() gate.Fields {
	fields := completeFields()
	blank := "   "
	fields.Country = &blank
	return fields
}

func banned(role sec.UserRole) gate.Fields {
	fields := completeFields()
	fields.IsBanned = true
	fields.Role = role
	return fields
}

func bannedWithoutCountry() gate.Fields {
	fields := banned(sec.RoleMember)
	fields.Country = nil
	return fields
}

var feedRequirements = gate.Requirements{
	RequireAuth:        true,
	RequireBanCheck:    true,
	RequireCountry:     true,
	RequireDateOfBirth: true,
}

func authenticated(accountID string) gate.Subject {
	return gate.Subject{Auth: gate.AuthAuthenticated, AccountID: accountID}
}
