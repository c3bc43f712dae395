// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementTimeoutQuery(t *testing.T) {
	assert.Equal(t, "SET statement_timeout = 30000", statementTimeoutQuery(30*time.Second))
	assert.Equal(t, "SET statement_timeout = 1500", statementTimeoutQuery(1500*time.Millisecond))
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DSN")
}
