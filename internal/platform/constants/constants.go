// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, gate routes and cache keys that are
shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuers and header names.
  - Profile Gate: Redirect targets, cache TTLs and storage key prefixes.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "profilegate-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs issued by the session service.
	AuthIssuer = "yomira.app"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderGateDecision  = "X-Gate-Decision"
	HeaderRetryAfter    = "Retry-After"
)

// # Profile Gate

const (
	// RouteAuth is where unauthenticated visitors of protected paths are sent.
	RouteAuth = "/auth"

	// RouteBanned is the ban notice.
	RouteBanned = "/banned"

	// RouteCompleteProfile is where accounts missing required fields are sent.
	RouteCompleteProfile = "/complete-profile"

	// RouteHome is the fallback target for insufficient role.
	RouteHome = "/"

	// QueryParamFrom carries the originating path across the login redirect.
	QueryParamFrom = "from"
)

const (
	// ProfileGateTTL is how long a cache-worthy attribute snapshot stays valid.
	ProfileGateTTL = 5 * time.Minute

	// GateWaitTimeout bounds how long a guarded request waits for attributes
	// before rendering a pending response.
	GateWaitTimeout = 5 * time.Second

	// SnapshotSweepInterval is how often expired in-memory snapshots are dropped.
	SnapshotSweepInterval = 1 * time.Minute

	// PendingRetryAfterSeconds is sent with pending responses.
	PendingRetryAfterSeconds = 1
)

// # Log and Probe Fields

const (
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Cache Taxonomy

const (
	// CachePrefixProfileCheck namespaces the persisted attribute snapshot.
	CachePrefixProfileCheck = "profile_check_"

	// CachePrefixCountryCheck and CachePrefixDOBCheck are the per-attribute
	// keys written by older single-purpose guards. They are only ever cleared.
	CachePrefixCountryCheck = "country_check_"
	CachePrefixDOBCheck     = "dob_check_"

	// RedisChannelGateInvalidate carries account IDs whose snapshot must be
	// dropped on every replica.
	RedisChannelGateInvalidate = "gate:invalidate"
)
