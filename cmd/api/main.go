// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the profilegate HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Install the tracer provider.
//  4. Connect to PostgreSQL (pgxpool) and run migrations.
//  5. Connect to Redis when configured.
//  6. Wire the gate store, composer and account service.
//  7. Start background loops and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/profilegate/internal/api"
	"github.com/taibuivan/profilegate/internal/platform/config"
	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/middleware"
	"github.com/taibuivan/profilegate/internal/platform/migration"
	pgstore "github.com/taibuivan/profilegate/internal/platform/postgres"
	redisstore "github.com/taibuivan/profilegate/internal/platform/redis"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/platform/sessioncache"
	"github.com/taibuivan/profilegate/internal/platform/telemetry"
	"github.com/taibuivan/profilegate/internal/users/account"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String(constants.FieldVersion, constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("redis", cfg.RedisURL != ""),
	)

	// Root context for startup. Misconfiguration fails fast instead of hanging.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Tracing ────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Init(startupCtx, telemetry.Settings{
		ServiceName:    constants.AppName,
		ServiceVersion: constants.AppVersion,
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		SampleRatio:    cfg.OTelSampleRatio,
	}, log)
	must(log, err, "initialize tracing")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("tracing_shutdown_failed", slog.Any("error", err))
		}
	}()

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Redis (optional) ───────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
	}

	// ── 6. Token Verification ─────────────────────────────────────────────
	verifier, err := sec.NewTokenVerifier(cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "load jwt public key")

	// ── 7. Health handlers ────────────────────────────────────────────────
	dependencies := api.HealthDependencies{
		CheckDatabase: func() error { return pgstore.Ping(context.Background(), pool) },
	}
	if rdb != nil {
		dependencies.CheckCache = func() error { return redisstore.Ping(context.Background(), rdb) }
	}
	liveness, readiness := api.NewHealthHandlers(dependencies, log)

	// ── 8. Gate Wiring ────────────────────────────────────────────────────
	accountRepository := account.NewAccountRepository(pool)
	hub := gate.NewHub()

	storeOptions := []gate.StoreOption{gate.WithObserver(hub.Notify)}
	var broadcaster *gate.Broadcaster
	if rdb != nil {
		broadcaster = gate.NewBroadcaster(rdb, log)
		storeOptions = append(storeOptions, gate.WithPublisher(broadcaster))
	}

	cache := sessioncache.New[gate.Attributes](
		sessioncache.NewStorage(startupCtx, rdb),
		constants.ProfileGateTTL,
		sessioncache.WithLogger[gate.Attributes](log),
	)
	store := gate.NewStore(accountRepository, cache, log, storeOptions...)
	composer := gate.NewComposer(store, log, gate.WithWaitTimeout(cfg.GateWaitTimeout))

	accountService := account.NewService(accountRepository, account.NewAuditRepository(pool), store, log)

	// ── 9. Background Loops ───────────────────────────────────────────────
	runCtx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()

	limiter := middleware.NewRateLimiter(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst)
	go limiter.Run(runCtx)
	go store.Run(runCtx)

	if broadcaster != nil {
		go func() {
			if err := broadcaster.Listen(runCtx, store, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("gate_broadcast_stopped", slog.Any("error", err))
			}
		}()
	}

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Gate:      gate.NewHandler(store, composer, gate.WithEvents(hub, originPatterns(cfg)...)),
		Composer:  composer,
		Account:   account.NewHandler(accountService),
	}

	server := api.NewServer(cfg, log, verifier, limiter, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	stopLoops()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String(constants.FieldApp, constants.AppName))
}

// originPatterns lists the hosts allowed to open the gate event stream.
func originPatterns(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{"*." + cfg.OriginSuffix(), cfg.OriginSuffix()}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
