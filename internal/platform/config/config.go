// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, gate store) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the profilegate API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath overrides the embedded SQL migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Key-Value Cache (Redis). When empty the gate cache runs in memory.
	RedisURL string `env:"REDIS_URL"`

	// JWTPubKeyPath is the RS256 public key of the external session service.
	JWTPubKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`

	// GateWaitTimeout bounds how long a guarded request waits for attributes.
	GateWaitTimeout time.Duration `env:"GATE_WAIT_TIMEOUT" envDefault:"5s"`

	// Tracing (OpenTelemetry). An empty endpoint keeps spans in-process.
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OTelSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"CORS_ORIGIN_SUFFIX" envDefault:"yomira.app"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.GateWaitTimeout <= 0 {
		return nil, fmt.Errorf("config: GATE_WAIT_TIMEOUT must be positive, got %s", cfg.GateWaitTimeout)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// OriginSuffix is the host suffix accepted by CORS outside development.
func (c *Config) OriginSuffix() string {
	return c.AllowedOriginSuffix
}
