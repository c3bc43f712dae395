// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package singleflight_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/singleflight"
)

type result struct {
	value string
	err   error
}

// blockingProducer returns a producer that counts invocations and blocks until release is closed.
func blockingProducer(calls *int32, release <-chan struct{}, value string, err error) singleflight.Producer[string] {
	return func(ctx context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		<-release
		return value, err
	}
}

// resolveConcurrently starts n callers for key and returns a channel with their results.
func resolveConcurrently(ctx context.Context, group *singleflight.Group[string], key string, n int, producer singleflight.Producer[string]) <-chan result {
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			value, err := group.Resolve(ctx, key, producer)
			results <- result{value: value, err: err}
		}()
	}
	return results
}

/*
TestGroup_SingleFlight verifies that N concurrent callers share exactly one producer call.
*/
func TestGroup_SingleFlight(t *testing.T) {
	const callers = 10

	group := singleflight.New[string]()
	release := make(chan struct{})
	var calls int32

	results := resolveConcurrently(context.Background(), group, "acc-1", callers, blockingProducer(&calls, release, "snapshot", nil))

	// Every caller is attached to the outstanding call before it settles.
	require.Eventually(t, func() bool { return group.Waiters("acc-1") == callers }, time.Second, time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		got := <-results
		require.NoError(t, got.err)
		assert.Equal(t, "snapshot", got.value)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Zero(t, group.Waiters("acc-1"))
}

/*
TestGroup_ErrorPropagatesAndIsNotCached ensures every waiter sees the same error
and that the next call after settlement runs the producer again.
*/
func TestGroup_ErrorPropagatesAndIsNotCached(t *testing.T) {
	const callers = 3

	group := singleflight.New[string]()
	release := make(chan struct{})
	backendErr := errors.New("backend unreachable")
	var calls int32

	results := resolveConcurrently(context.Background(), group, "acc-1", callers, blockingProducer(&calls, release, "", backendErr))
	require.Eventually(t, func() bool { return group.Waiters("acc-1") == callers }, time.Second, time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		got := <-results
		assert.ErrorIs(t, got.err, backendErr)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Settled: a fresh call must start a new producer.
	value, err := group.Resolve(context.Background(), "acc-1", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

/*
TestGroup_DistinctKeysRunIndependently covers an account switch: different keys never share a call.
*/
func TestGroup_DistinctKeysRunIndependently(t *testing.T) {
	group := singleflight.New[string]()
	release := make(chan struct{})
	var calls int32

	first := resolveConcurrently(context.Background(), group, "acc-1", 1, blockingProducer(&calls, release, "one", nil))
	second := resolveConcurrently(context.Background(), group, "acc-2", 1, blockingProducer(&calls, release, "two", nil))

	require.Eventually(t, func() bool {
		return group.Waiters("acc-1") == 1 && group.Waiters("acc-2") == 1
	}, time.Second, time.Millisecond)
	close(release)

	assert.Equal(t, "one", (<-first).value)
	assert.Equal(t, "two", (<-second).value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

/*
TestGroup_CallerCancellation checks that one caller leaving does not cancel the shared call.
*/
func TestGroup_CallerCancellation(t *testing.T) {
	group := singleflight.New[string]()
	release := make(chan struct{})
	var calls int32
	producerCtxErr := make(chan error, 1)

	producer := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		producerCtxErr <- ctx.Err()
		return "snapshot", nil
	}

	impatientCtx, cancel := context.WithCancel(context.Background())
	impatient := resolveConcurrently(impatientCtx, group, "acc-1", 1, producer)
	require.Eventually(t, func() bool { return group.Waiters("acc-1") == 1 }, time.Second, time.Millisecond)

	patient := resolveConcurrently(context.Background(), group, "acc-1", 1, producer)
	require.Eventually(t, func() bool { return group.Waiters("acc-1") == 2 }, time.Second, time.Millisecond)

	cancel()
	got := <-impatient
	assert.ErrorIs(t, got.err, context.Canceled)

	close(release)
	got = <-patient
	require.NoError(t, got.err)
	assert.Equal(t, "snapshot", got.value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoError(t, <-producerCtxErr)
}

/*
TestGroup_Forget verifies that a forgotten key starts a new call while the old one is still pending.
*/
func TestGroup_Forget(t *testing.T) {
	group := singleflight.New[string]()
	staleRelease := make(chan struct{})
	var calls int32

	stale := resolveConcurrently(context.Background(), group, "acc-1", 1, blockingProducer(&calls, staleRelease, "stale", nil))
	require.Eventually(t, func() bool { return group.Waiters("acc-1") == 1 }, time.Second, time.Millisecond)

	group.Forget("acc-1")

	value, err := group.Resolve(context.Background(), "acc-1", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)

	close(staleRelease)
	assert.Equal(t, "stale", (<-stale).value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

/*
TestGroup_ParallelRounds stresses repeated rounds to make sure settled keys never leak.
*/
func TestGroup_ParallelRounds(t *testing.T) {
	group := singleflight.New[int]()
	var wg sync.WaitGroup

	for round := 0; round < 20; round++ {
		wg.Add(1)
		go func(round int) {
			defer wg.Done()
			value, err := group.Resolve(context.Background(), "k", func(ctx context.Context) (int, error) {
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, value)
		}(round)
	}
	wg.Wait()

	assert.Zero(t, group.Waiters("k"))
}
