// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+server.Addr()+"/0", discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, Ping(context.Background(), client))

	server.Close()
	assert.Error(t, Ping(context.Background(), client))
}

func TestNewClient_Failures(t *testing.T) {
	_, err := NewClient(context.Background(), "http://not-redis", discard)
	assert.ErrorContains(t, err, "invalid URL")

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err = NewClient(context.Background(), "redis://"+addr, discard)
	assert.ErrorContains(t, err, "ping failed")
}
