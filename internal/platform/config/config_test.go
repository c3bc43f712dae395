// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/config"
)

/*
TestLoad_Defaults verifies that optional settings fall back to their defaults.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/profilegate")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/tmp/pub.pem")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("GATE_WAIT_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.GateWaitTimeout)
	assert.Empty(t, cfg.RedisURL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

/*
TestLoad_MissingRequired ensures required variables are enforced.
*/
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "")

	_, err := config.Load()
	assert.Error(t, err)
}

/*
TestLoad_RejectsNonPositiveWait guards against gates that never wait for attributes.
*/
func TestLoad_RejectsNonPositiveWait(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/profilegate")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/tmp/pub.pem")
	t.Setenv("GATE_WAIT_TIMEOUT", "0s")

	_, err := config.Load()
	assert.Error(t, err)
}
