// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It is the composition root for the chi router and the gated route groups.
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/profilegate/internal/platform/config"
	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/middleware"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/platform/telemetry"
	"github.com/taibuivan/profilegate/internal/users/account"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. It returns 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. It returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Gate answers navigation decisions and controls the attribute cache.
	Gate *gate.Handler

	// Composer guards the server-rendered route groups.
	Composer *gate.Composer

	// Account handles profile edits and moderation.
	Account *account.Handler
}

// # Gated Route Groups

var (
	feedRequirements = gate.Requirements{
		RequireAuth:        true,
		RequireBanCheck:    true,
		RequireCountry:     true,
		RequireDateOfBirth: true,
	}

	adminRequirements = gate.Requirements{
		RequireAuth:     true,
		RequireBanCheck: true,
		RequireRole:     sec.RoleAdmin,
	}

	// Destination screens carry their own gates. Each collapses to allow on
	// its own path, so a redirect always lands.
	sessionRequirements = gate.Requirements{
		RequireAuth:     true,
		RequireBanCheck: true,
	}
)

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, limiter *middleware.RateLimiter, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(telemetry.HTTPMiddleware(constants.AppName))
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(timeoutExceptStreams(constants.GlobalRequestTimeout))
	r.Use(limiter.Handler)
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(verifier))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Gate Destinations
	r.Get(constants.RouteAuth, screen("auth"))
	r.With(h.Composer.Require(sessionRequirements)).Get(constants.RouteHome, screen("home"))
	r.With(h.Composer.Require(sessionRequirements)).Get(constants.RouteBanned, screen("banned"))
	r.With(h.Composer.Require(feedRequirements)).Get(constants.RouteCompleteProfile, screen("complete_profile"))

	// # Application API
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/gate", h.Gate.Routes())

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.RequireAuth)
			authed.Mount("/me", h.Account.Routes())
		})

		api.Group(func(moderators chi.Router) {
			moderators.Use(middleware.RequireRole(sec.RoleModerator))
			moderators.Mount("/moderation", h.Account.ModerationRoutes())
		})

		// Screens rendered behind the composed gates.
		api.With(h.Composer.Require(feedRequirements)).Get("/feed", screen("feed"))
		api.With(h.Composer.Require(adminRequirements)).Get("/admin", screen("admin"))
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// timeoutExceptStreams applies the request deadline to everything except
// WebSocket upgrades, which outlive any single request budget.
func timeoutExceptStreams(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := chimw.Timeout(timeout)(next)
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if strings.EqualFold(request.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(writer, request)
				return
			}
			timed.ServeHTTP(writer, request)
		})
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
