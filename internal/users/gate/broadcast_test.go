// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

// recordingDropper collects dropped account IDs.
type recordingDropper struct{ dropped chan string }

func (dropper recordingDropper) DropLocal(accountID string) { dropper.dropped <- accountID }

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func listen(t *testing.T, broadcaster *gate.Broadcaster, dropper gate.Dropper) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- broadcaster.Listen(ctx, dropper, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("listener exited early: %v", err)
	case <-time.After(time.Second):
		t.Fatal("listener never subscribed")
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

/*
TestBroadcaster_DeliversToOtherReplicas skips messages from its own instance.
*/
func TestBroadcaster_DeliversToOtherReplicas(t *testing.T) {
	_, client := newRedis(t)

	local := gate.NewBroadcaster(client, discard)
	remote := gate.NewBroadcaster(client, discard)

	localDropped := recordingDropper{dropped: make(chan string, 4)}
	remoteDropped := recordingDropper{dropped: make(chan string, 4)}
	listen(t, local, localDropped)
	listen(t, remote, remoteDropped)

	require.NoError(t, local.PublishInvalidation(context.Background(), "acc-1"))

	select {
	case accountID := <-remoteDropped.dropped:
		assert.Equal(t, "acc-1", accountID)
	case <-time.After(time.Second):
		t.Fatal("remote replica never received the invalidation")
	}

	select {
	case accountID := <-localDropped.dropped:
		t.Fatalf("publisher dropped its own message for %s", accountID)
	case <-time.After(50 * time.Millisecond):
	}
}

/*
TestBroadcaster_MalformedMessagesAreIgnored keeps listening after garbage.
*/
func TestBroadcaster_MalformedMessagesAreIgnored(t *testing.T) {
	server, client := newRedis(t)
	broadcaster := gate.NewBroadcaster(client, discard)
	dropped := recordingDropper{dropped: make(chan string, 4)}
	listen(t, broadcaster, dropped)

	server.Publish("gate:invalidate", "not json")
	server.Publish("gate:invalidate", `{"account_id":"acc-7","origin":"elsewhere"}`)

	select {
	case accountID := <-dropped.dropped:
		assert.Equal(t, "acc-7", accountID)
	case <-time.After(time.Second):
		t.Fatal("valid message after garbage was not delivered")
	}
}

/*
TestStore_InvalidateReachesOtherReplica wires two stores through one Redis.
*/
func TestStore_InvalidateReachesOtherReplica(t *testing.T) {
	_, client := newRedis(t)
	storage := sessioncache.NewRedisStorage(client)

	replicaA := newFixture(t, storage, gate.WithPublisher(gate.NewBroadcaster(client, discard)))
	replicaB := newFixture(t, storage)
	listen(t, gate.NewBroadcaster(client, discard), replicaB.store)

	replicaA.backend.set("acc-1", completeFields())
	replicaB.backend.set("acc-1", completeFields())

	resolve(t, replicaA.store, "acc-1")
	resolve(t, replicaB.store, "acc-1")
	_, ok := replicaB.store.Peek("acc-1")
	require.True(t, ok)

	require.NoError(t, replicaA.store.Invalidate(context.Background(), "acc-1"))

	require.Eventually(t, func() bool {
		_, ok := replicaB.store.Peek("acc-1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	resolve(t, replicaB.store, "acc-1")
	assert.Equal(t, 1, replicaB.backend.fetches(), "replica B refetches after the broadcast")
}
