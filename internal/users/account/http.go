// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account provides the HTTP delivery layer for profile edits and moderation.

# Security

Routes() expects RequireAuth upstream. ModerationRoutes() expects
RequireRole(moderator) upstream; the service additionally refuses to act on
accounts of equal or higher role.
*/
package account

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/profilegate/internal/platform/apperr"
	requestutil "github.com/taibuivan/profilegate/internal/platform/request"
	"github.com/taibuivan/profilegate/internal/platform/respond"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/platform/validate"
	"github.com/taibuivan/profilegate/pkg/pagination"
	"github.com/taibuivan/profilegate/pkg/slice"
	"github.com/taibuivan/profilegate/pkg/slug"
)

// minimumAge is the youngest age accepted on the profile.
const minimumAge = 13

// Handler implements the HTTP layer for account management.
type Handler struct {
	accountService *Service
	now            func() time.Time
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service, now: time.Now}
}

// Routes returns the self-service endpoints, mounted under /me.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.getMe)
	router.Patch("/", handler.updateMe)

	return router
}

// ModerationRoutes returns the moderator endpoints, mounted under /moderation.
func (handler *Handler) ModerationRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/accounts/banned", handler.listBanned)
	router.Post("/accounts/{id}/ban", handler.ban)
	router.Delete("/accounts/{id}/ban", handler.unban)

	return router
}

// # Profile Endpoints

/*
GET /api/v1/me.

Description: Retrieves the full private profile of the authenticated user.

Response:
  - 200: Account
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Handle      *string `json:"handle"`
	AvatarURL   *string `json:"avatar_url"`
	Country     *string `json:"country"`
	DateOfBirth *string `json:"date_of_birth"` // YYYY-MM-DD
}

/*
PATCH /api/v1/me.

Description: Applies partial updates to the caller's profile and drops the
caller's gate snapshot, so a completed profile unlocks guarded routes on
the next navigation.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: Account: The updated profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
  - 409: Conflict: Handle already taken
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MinLen("display_name", *input.DisplayName, 2).MaxLen("display_name", *input.DisplayName, 50)
	}
	if input.Handle != nil {
		handle := slug.Handle(*input.Handle)
		v.MinLen("handle", handle, 3).MaxLen("handle", handle, 30).Handle("handle", handle)
	}
	if input.AvatarURL != nil && *input.AvatarURL != "" {
		v.HTTPURL("avatar_url", *input.AvatarURL)
	}
	if input.Country != nil && strings.TrimSpace(*input.Country) != "" {
		v.Country("country", strings.ToUpper(strings.TrimSpace(*input.Country)))
	}

	var dateOfBirth *time.Time
	if input.DateOfBirth != nil {
		parsed, parseErr := time.Parse(time.DateOnly, *input.DateOfBirth)
		v.Custom("date_of_birth", parseErr != nil, "must be a date in YYYY-MM-DD format")
		if parseErr == nil {
			v.BornBefore("date_of_birth", parsed, handler.now().AddDate(-minimumAge, 0, 0))
			dateOfBirth = &parsed
		}
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName: input.DisplayName,
		Handle:      input.Handle,
		AvatarURL:   input.AvatarURL,
		Country:     input.Country,
		DateOfBirth: dateOfBirth,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// # Moderation Endpoints

// bannedAccount is the moderator's view of a banned account.
type bannedAccount struct {
	ID        string     `json:"id"`
	Handle    string     `json:"handle"`
	BannedAt  *time.Time `json:"banned_at"`
	BanReason *string    `json:"ban_reason"`
}

/*
GET /api/v1/moderation/accounts/banned.

Request:
  - page, limit: pagination query parameters

Response:
  - 200: []bannedAccount with pagination meta
  - 403: Forbidden: Moderator role required
*/
func (handler *Handler) listBanned(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	accounts, total, err := handler.accountService.ListBanned(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	view := slice.Map(accounts, func(account Account) bannedAccount {
		return bannedAccount{
			ID:        account.ID,
			Handle:    account.Handle,
			BannedAt:  account.BannedAt,
			BanReason: account.BanReason,
		}
	})

	respond.Paginated(writer, view, pagination.NewMeta(params.Page, params.Limit, total))
}

type banRequest struct {
	Reason string `json:"reason"`
}

/*
POST /api/v1/moderation/accounts/{id}/ban.

Description: Bans an account. Its gate snapshot is invalidated on every
replica, so the next guarded request redirects to the ban notice.

Request:
  - id: string (Account UUID)
  - body: banRequest

Response:
  - 200: Account: The banned account
  - 400: Validation: Missing reason
  - 403: Forbidden: Self-ban or insufficient role
  - 404: NotFound: Unknown account
*/
func (handler *Handler) ban(writer http.ResponseWriter, request *http.Request) {
	actor, err := actorFrom(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountID := requestutil.Param(request, "id")

	var input banRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.UUID("id", accountID).Required("reason", input.Reason).MaxLen("reason", input.Reason, 500)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.Ban(request.Context(), actor, accountID, input.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
DELETE /api/v1/moderation/accounts/{id}/ban.

Response:
  - 200: Account: The account after the ban was lifted
  - 403: Forbidden: Self-unban or insufficient role
  - 404: NotFound: Unknown account
*/
func (handler *Handler) unban(writer http.ResponseWriter, request *http.Request) {
	actor, err := actorFrom(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountID := requestutil.Param(request, "id")

	v := &validate.Validator{}
	if err := v.UUID("id", accountID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.Unban(request.Context(), actor, accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

func actorFrom(request *http.Request) (Actor, error) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return Actor{}, err
	}

	role := sec.UserRole(claims.Role)
	if !role.AtLeast(sec.RoleModerator) {
		return Actor{}, apperr.Forbidden("Moderator role required")
	}

	return Actor{ID: claims.UserID, Role: role, IPAddress: request.RemoteAddr}, nil
}
