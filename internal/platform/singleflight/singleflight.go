// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package singleflight collapses concurrent requests for the same key into one
underlying call.

It is a typed layer over [golang.org/x/sync/singleflight]:

  - At most one producer runs per key; late callers attach to the pending call.
  - The registration is removed as soon as the call settles, success or error,
    so the next call after settlement always starts fresh. Errors are never cached.
  - Every attached caller receives the identical value or identical error.
  - A caller's context only bounds its own wait. The producer runs detached from
    cancellation, so one caller giving up never fails the others.
*/
package singleflight

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Producer computes the value for a key. It receives a context that carries the
// first caller's values (logger, trace span) but not its cancellation.
type Producer[V any] func(ctx context.Context) (V, error)

// Group deduplicates in-flight calls per key. The zero value is not usable;
// construct one with [New].
type Group[V any] struct {
	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
}

// New returns an empty [Group].
func New[V any]() *Group[V] {
	return &Group[V]{waiters: make(map[string]int)}
}

// Resolve returns the result of producer for key, starting it only if no call
// for key is outstanding.
//
// If ctx ends before the call settles, Resolve returns ctx.Err(); the call
// itself keeps running for the remaining callers.
func (g *Group[V]) Resolve(ctx context.Context, key string, producer Producer[V]) (V, error) {
	detached := context.WithoutCancel(ctx)

	// DoChan registers (or joins) under the group lock before returning.
	results := g.group.DoChan(key, func() (interface{}, error) {
		return producer(detached)
	})

	g.track(key, 1)
	defer g.track(key, -1)

	select {
	case result := <-results:
		value, _ := result.Val.(V)
		return value, result.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Forget drops the registration for key. Callers already attached still get
// the pending result; the next Resolve for key starts a new call.
func (g *Group[V]) Forget(key string) {
	g.group.Forget(key)
}

// Waiters reports how many callers are currently waiting on key.
func (g *Group[V]) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters[key]
}

func (g *Group[V]) track(key string, delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.waiters[key] += delta
	if g.waiters[key] <= 0 {
		delete(g.waiters, key)
	}
}
