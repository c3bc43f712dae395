// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/ctxutil"
	"github.com/taibuivan/profilegate/internal/platform/respond"
)

// # Subject

// Subject is the caller as seen by the gates.
type Subject struct {
	Auth      AuthStatus
	AccountID string
}

// SubjectFromContext reads the session state left by the authentication middleware.
func SubjectFromContext(ctx context.Context) Subject {
	if !ctxutil.AuthResolved(ctx) {
		return Subject{Auth: AuthUnknown}
	}

	claims := ctxutil.GetAuthUser(ctx)
	if claims == nil || claims.UserID == "" {
		return Subject{Auth: AuthAnonymous}
	}

	return Subject{Auth: AuthAuthenticated, AccountID: claims.UserID}
}

// # Navigation

// Navigator performs the redirect for a decision.
type Navigator interface {
	Redirect(writer http.ResponseWriter, request *http.Request, decision Decision)
}

// HTTPNavigator answers with 303 See Other. A response that already carries a
// gate decision is left untouched, so a request is redirected at most once.
type HTTPNavigator struct{}

func (HTTPNavigator) Redirect(writer http.ResponseWriter, request *http.Request, decision Decision) {
	if writer.Header().Get(constants.HeaderGateDecision) != "" {
		return
	}

	location := decision.Target
	if decision.From != "" {
		location += "?" + url.Values{constants.QueryParamFrom: {decision.From}}.Encode()
	}

	writer.Header().Set(constants.HeaderGateDecision, string(decision.State))
	writer.Header().Set("Location", location)
	writer.WriteHeader(http.StatusSeeOther)
}

// # Composer

/*
Composer mounts the guards a route declares and reduces them to one decision.

Guards are mounted in a fixed order: authentication, ban, role, completeness.
Pending wins over everything; otherwise the first redirect in that order is
returned.
*/
type Composer struct {
	store       *Store
	navigator   Navigator
	waitTimeout time.Duration
	logger      *slog.Logger
}

// ComposerOption customises a [Composer].
type ComposerOption func(*Composer)

// WithNavigator replaces the default [HTTPNavigator].
func WithNavigator(navigator Navigator) ComposerOption {
	return func(composer *Composer) {
		composer.navigator = navigator
	}
}

// WithWaitTimeout bounds how long [Composer.Require] waits for attributes.
func WithWaitTimeout(timeout time.Duration) ComposerOption {
	return func(composer *Composer) {
		composer.waitTimeout = timeout
	}
}

// NewComposer builds a composer on top of store.
func NewComposer(store *Store, logger *slog.Logger, options ...ComposerOption) *Composer {
	composer := &Composer{
		store:       store,
		navigator:   HTTPNavigator{},
		waitTimeout: constants.GateWaitTimeout,
		logger:      logger,
	}
	for _, option := range options {
		option(composer)
	}
	return composer
}

/*
Evaluate returns the decision for subject navigating to currentPath.

It waits for attributes until ctx ends; a context that ends first yields a
pending decision.
*/
func (composer *Composer) Evaluate(ctx context.Context, requirements Requirements, subject Subject, currentPath string) Decision {
	var attributes *Attributes
	if subject.Auth == AuthAuthenticated && requirements.NeedsAttributes() {
		if resolved, ok := composer.store.Attributes(ctx, subject.AccountID, false); ok {
			attributes = &resolved
		}
	}
	return compose(requirements, subject, attributes, currentPath)
}

// Peek is [Composer.Evaluate] without waiting: if no snapshot is cached, a
// background fetch is started and the decision is pending.
func (composer *Composer) Peek(ctx context.Context, requirements Requirements, subject Subject, currentPath string) Decision {
	var attributes *Attributes
	if subject.Auth == AuthAuthenticated && requirements.NeedsAttributes() {
		if cached, ok := composer.store.Cached(ctx, subject.AccountID); ok {
			attributes = &cached
		} else {
			composer.store.Prefetch(ctx, subject.AccountID)
			composer.logger.DebugContext(ctx, "gate_prefetch_started", slog.String("account_id", subject.AccountID))
		}
	}
	return compose(requirements, subject, attributes, currentPath)
}

// Require guards a route group with the given requirements.
func (composer *Composer) Require(requirements Requirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx, cancel := composer.boundedContext(request)
			defer cancel()

			decision := composer.Evaluate(ctx, requirements, SubjectFromContext(request.Context()), request.URL.Path)
			if decision.Kind != KindAllow {
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "gate_request_blocked",
					slog.String("path", request.URL.Path),
					slog.String("decision", string(decision.Kind)),
					slog.String("state", string(decision.State)),
				)
			}

			composer.Render(writer, request, decision, next)
		})
	}
}

// Render writes exactly one outcome: the guarded handler, a pending response or a redirect.
func (composer *Composer) Render(writer http.ResponseWriter, request *http.Request, decision Decision, next http.Handler) {
	switch decision.Kind {
	case KindAllow:
		next.ServeHTTP(writer, request)
	case KindPending:
		if writer.Header().Get(constants.HeaderGateDecision) != "" {
			return
		}
		writer.Header().Set(constants.HeaderGateDecision, string(decision.State))
		writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(constants.PendingRetryAfterSeconds))
		respond.JSON(writer, http.StatusAccepted, respond.SuccessEnvelope{Data: decision})
	case KindRedirect:
		composer.navigator.Redirect(writer, request, decision)
	}
}

func (composer *Composer) boundedContext(request *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(request.Context(), composer.waitTimeout)
}

// # Composition

// mount splits requirements into one guard per concern, in precedence order.
func mount(requirements Requirements) []Requirements {
	var guards []Requirements
	auth := requirements.RequireAuth

	if auth {
		guards = append(guards, Requirements{RequireAuth: true})
	}
	if requirements.RequireBanCheck {
		guards = append(guards, Requirements{RequireAuth: auth, RequireBanCheck: true})
	}
	if requirements.RequireRole != "" {
		guards = append(guards, Requirements{RequireAuth: auth, RequireRole: requirements.RequireRole})
	}
	if requirements.RequireCountry || requirements.RequireDateOfBirth {
		guards = append(guards, Requirements{
			RequireAuth:        auth,
			RequireCountry:     requirements.RequireCountry,
			RequireDateOfBirth: requirements.RequireDateOfBirth,
		})
	}
	return guards
}

func compose(requirements Requirements, subject Subject, attributes *Attributes, currentPath string) Decision {
	guards := mount(requirements)
	if len(guards) == 0 {
		return allow(StateAuthorized)
	}

	// The first guard that leaves the authorized state decides, even when its
	// redirect collapsed to allow on its own destination. Later guards never
	// override it, so a banned caller stays on the ban notice.
	for _, guard := range guards {
		decision := Evaluate(Input{
			Auth:         subject.Auth,
			Attributes:   attributes,
			Requirements: guard,
			Path:         currentPath,
		})
		if decision.Kind != KindAllow || decision.State != StateAuthorized {
			return decision
		}
	}

	return allow(StateAuthorized)
}
