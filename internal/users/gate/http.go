// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/profilegate/internal/platform/apperr"
	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/middleware"
	requestutil "github.com/taibuivan/profilegate/internal/platform/request"
	"github.com/taibuivan/profilegate/internal/platform/respond"
	"github.com/taibuivan/profilegate/internal/platform/sec"
)

// Handler exposes gate evaluation and cache control to the rendering client.
type Handler struct {
	store    *Store
	composer *Composer

	hub            *Hub
	originPatterns []string
}

// HandlerOption customises a [Handler].
type HandlerOption func(*Handler)

// WithEvents enables the WebSocket event stream. originPatterns are the
// cross-origin hosts allowed to connect (e.g. "*.yomira.app").
func WithEvents(hub *Hub, originPatterns ...string) HandlerOption {
	return func(handler *Handler) {
		handler.hub = hub
		handler.originPatterns = originPatterns
	}
}

// NewHandler constructs a new gate [Handler].
func NewHandler(store *Store, composer *Composer, options ...HandlerOption) *Handler {
	handler := &Handler{store: store, composer: composer}
	for _, option := range options {
		option(handler)
	}
	return handler
}

// Routes returns a [chi.Router] mounted under /api/v1/gate.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.evaluate)
	router.Get("/attributes", handler.getAttributes)
	router.Get("/events", handler.streamEvents)

	// Invalidation
	router.Delete("/cache", handler.invalidateSelf)
	router.Post("/logout", handler.invalidateSelf)
	router.With(middleware.RequireRole(sec.RoleModerator)).Delete("/cache/{accountID}", handler.invalidateAccount)

	return router
}

// # Evaluation Endpoints

/*
GET /api/v1/gate.

Description: Returns the gate decision for the caller navigating to a path.

Request:
  - path: string (navigation target, default "/")
  - require: string (comma separated: auth, ban, country, dob)
  - role: string (optional minimum role)
  - wait: bool (default true; false answers pending instead of blocking)

Response:
  - 200: Decision
  - 400: ErrValidation: Unknown check or role
*/
func (handler *Handler) evaluate(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	requirements, err := ParseRequirements(query.Get("require"), query.Get("role"))
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError(err.Error()))
		return
	}

	wait := true
	if raw := query.Get("wait"); raw != "" {
		if wait, err = strconv.ParseBool(raw); err != nil {
			respond.Error(writer, request, apperr.ValidationError("wait must be a boolean"))
			return
		}
	}

	target := query.Get("path")
	if target == "" {
		target = constants.RouteHome
	}

	subject := SubjectFromContext(request.Context())

	var decision Decision
	if wait {
		ctx, cancel := handler.composer.boundedContext(request)
		defer cancel()
		decision = handler.composer.Evaluate(ctx, requirements, subject, target)
	} else {
		decision = handler.composer.Peek(request.Context(), requirements, subject, target)
	}

	respond.OK(writer, decision)
}

/*
GET /api/v1/gate/attributes.

Description: Returns the caller's gating attributes.

Response:
  - 200: Attributes
  - 202: Pending: Attributes are still being resolved
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getAttributes(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx, cancel := handler.composer.boundedContext(request)
	defer cancel()

	attributes, ok := handler.store.Attributes(ctx, userID, request.URL.Query().Get("refresh") == "true")
	if !ok {
		handler.composer.Render(writer, request, pending(StateCheckingAttributes), nil)
		return
	}

	respond.OK(writer, attributes)
}

// # Invalidation Endpoints

/*
DELETE /api/v1/gate/cache and POST /api/v1/gate/logout.

Description: Drops every cached view of the caller's attributes. Screens call
it after editing a gated field; the client calls it on logout.

Response:
  - 204: No Content
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) invalidateSelf(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.store.Invalidate(request.Context(), userID); err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/gate/cache/{accountID}.

Description: Drops cached attributes of another account (moderation tools).

Response:
  - 204: No Content
  - 403: ErrForbidden: Moderator role required
*/
func (handler *Handler) invalidateAccount(writer http.ResponseWriter, request *http.Request) {
	accountID := requestutil.Param(request, "accountID")
	if accountID == "" {
		respond.Error(writer, request, apperr.ValidationError("account id is required"))
		return
	}

	if err := handler.store.Invalidate(request.Context(), accountID); err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.NoContent(writer)
}
