// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/taibuivan/profilegate/internal/platform/constants"
	pgstore "github.com/taibuivan/profilegate/internal/platform/postgres"
	redisstore "github.com/taibuivan/profilegate/internal/platform/redis"
	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
	"github.com/taibuivan/profilegate/internal/users/account"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

// settings mirrors the subset of the API configuration gatectl needs.
type settings struct {
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// backendOpener connects to the attribute backend; the cleanup func releases it.
type backendOpener func(ctx context.Context, dsn string, logger *slog.Logger) (gate.Backend, func(), error)

type app struct {
	settings    settings
	verbose     bool
	openBackend backendOpener
}

func newApp() *app {
	return &app{openBackend: openPostgresBackend}
}

func newRootCommand(application *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "Inspect and invalidate profile gate state",
		Version:       constants.AppVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return application.loadSettings(cmd)
		},
	}

	root.PersistentFlags().String("redis-url", "", "Redis URL (default $REDIS_URL)")
	root.PersistentFlags().String("database-url", "", "PostgreSQL DSN (default $DATABASE_URL)")
	root.PersistentFlags().BoolVarP(&application.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newInspectCommand(application),
		newInvalidateCommand(application),
		newEvaluateCommand(application),
	)
	return root
}

// loadSettings reads the environment, then lets flags override it.
func (application *app) loadSettings(cmd *cobra.Command) error {
	if err := env.Parse(&application.settings); err != nil {
		return fmt.Errorf("gatectl: failed to parse environment: %w", err)
	}
	if value, _ := cmd.Flags().GetString("redis-url"); value != "" {
		application.settings.RedisURL = value
	}
	if value, _ := cmd.Flags().GetString("database-url"); value != "" {
		application.settings.DatabaseURL = value
	}
	return nil
}

func (application *app) logger(cmd *cobra.Command) *slog.Logger {
	var sink io.Writer = io.Discard
	if application.verbose {
		sink = cmd.ErrOrStderr()
	}
	return slog.New(slog.NewTextHandler(sink, nil)).With(slog.String("app", "gatectl"))
}

func (application *app) redis(ctx context.Context, logger *slog.Logger) (*goredis.Client, error) {
	if application.settings.RedisURL == "" {
		return nil, errors.New("gatectl: REDIS_URL or --redis-url is required")
	}
	return redisstore.NewClient(ctx, application.settings.RedisURL, logger)
}

// gateStore builds a store over the shared session cache. backend may be nil
// for commands that never fetch.
func (application *app) gateStore(client *goredis.Client, backend gate.Backend, logger *slog.Logger) *gate.Store {
	cache := sessioncache.New[gate.Attributes](
		sessioncache.NewRedisStorage(client),
		constants.ProfileGateTTL,
		sessioncache.WithLogger[gate.Attributes](logger),
	)
	return gate.NewStore(backend, cache, logger, gate.WithPublisher(gate.NewBroadcaster(client, logger)))
}

func openPostgresBackend(ctx context.Context, dsn string, logger *slog.Logger) (gate.Backend, func(), error) {
	if dsn == "" {
		return nil, nil, errors.New("gatectl: DATABASE_URL or --database-url is required")
	}
	pool, err := pgstore.NewPool(ctx, dsn, logger)
	if err != nil {
		return nil, nil, err
	}
	return account.NewAccountRepository(pool), pool.Close, nil
}

func printJSON(writer io.Writer, value any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
