// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/profilegate/internal/platform/apperr"
	"github.com/taibuivan/profilegate/pkg/pagination"
	"github.com/taibuivan/profilegate/pkg/slug"
)

// Audit actions.
const (
	ActionBan   = "account.ban"
	ActionUnban = "account.unban"
)

// # Service Layer

// Service orchestrates profile edits and moderation.
//
// Each successful write that affects gating invalidates the account's gate
// snapshot before returning.
type Service struct {
	accountRepository AccountRepository
	auditRepository   AuditRepository
	invalidator       Invalidator
	logger            *slog.Logger
	now               func() time.Time
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(
	accountRepo AccountRepository,
	auditRepo AuditRepository,
	invalidator Invalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		accountRepository: accountRepo,
		auditRepository:   auditRepo,
		invalidator:       invalidator,
		logger:            logger,
		now:               time.Now,
	}
}

// # Profile Management

/*
GetProfile retrieves the private profile of an account.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - *Account: The hydrated profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, accountID string) (*Account, error) {
	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return account, nil
}

// UpdateProfileInput is the partial set of editable fields. Nil leaves a
// field unchanged; an empty Country clears it.
type UpdateProfileInput struct {
	DisplayName *string
	Handle      *string
	AvatarURL   *string
	Country     *string
	DateOfBirth *time.Time
}

/*
UpdateProfile applies a partial set of changes to an account.

Description: Fetches the current state, applies the provided fields,
persists the result and invalidates the gate snapshot so completing a
profile unlocks guarded routes on the very next request.

Parameters:
  - context: context.Context
  - accountID: string
  - input: UpdateProfileInput

Returns:
  - *Account: The updated profile
  - error: Update, storage or invalidation failures
*/
func (service *Service) UpdateProfile(context context.Context, accountID string, input UpdateProfileInput) (*Account, error) {
	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	if input.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*input.DisplayName)
	}

	if input.Handle != nil {
		account.Handle = slug.Handle(*input.Handle)
	}

	if input.AvatarURL != nil {
		account.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}

	if input.Country != nil {
		if country := strings.ToUpper(strings.TrimSpace(*input.Country)); country != "" {
			account.Country = &country
		} else {
			account.Country = nil
		}
	}

	if input.DateOfBirth != nil {
		dateOfBirth := input.DateOfBirth.UTC().Truncate(24 * time.Hour)
		account.DateOfBirth = &dateOfBirth
	}

	account.UpdatedAt = service.now()
	if err := service.accountRepository.UpdateProfile(context, account); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	if err := service.invalidator.Invalidate(context, accountID); err != nil {
		return nil, fmt.Errorf("account_service_invalidate_failed: %w", err)
	}

	service.logger.Info("user_profile_updated", slog.String("user_id", accountID))

	return account, nil
}

// # Moderation

/*
Ban flags an account as banned and invalidates its gate snapshot.

Description: Moderators cannot ban themselves or accounts holding a role at
least as high as their own. Banning an already banned account refreshes the
reason.

Parameters:
  - context: context.Context
  - actor: Actor (the moderator)
  - accountID: string (the target)
  - reason: string

Returns:
  - *Account: The banned account
  - error: apperr.Forbidden, apperr.NotFound or storage failures
*/
func (service *Service) Ban(context context.Context, actor Actor, accountID, reason string) (*Account, error) {
	target, err := service.authorizeModeration(context, actor, accountID)
	if err != nil {
		return nil, err
	}

	before := *target
	at := service.now()
	reason = strings.TrimSpace(reason)

	if err := service.accountRepository.SetBan(context, accountID, &reason, &at); err != nil {
		return nil, fmt.Errorf("account_service_ban_failed: %w", err)
	}

	target.IsBanned = true
	target.BannedAt = &at
	target.BanReason = &reason

	if err := service.invalidator.Invalidate(context, accountID); err != nil {
		return nil, fmt.Errorf("account_service_invalidate_failed: %w", err)
	}

	service.audit(context, actor, ActionBan, &before, target)
	service.logger.Warn("user_account_banned",
		slog.String("user_id", accountID),
		slog.String("actor_id", actor.ID),
	)

	return target, nil
}

/*
Unban lifts the ban on an account and invalidates its gate snapshot.

Parameters:
  - context: context.Context
  - actor: Actor
  - accountID: string

Returns:
  - *Account: The account after the ban was lifted
  - error: apperr.Forbidden, apperr.NotFound or storage failures
*/
func (service *Service) Unban(context context.Context, actor Actor, accountID string) (*Account, error) {
	target, err := service.authorizeModeration(context, actor, accountID)
	if err != nil {
		return nil, err
	}

	before := *target

	if err := service.accountRepository.SetBan(context, accountID, nil, nil); err != nil {
		return nil, fmt.Errorf("account_service_unban_failed: %w", err)
	}

	target.IsBanned = false
	target.BannedAt = nil
	target.BanReason = nil

	if err := service.invalidator.Invalidate(context, accountID); err != nil {
		return nil, fmt.Errorf("account_service_invalidate_failed: %w", err)
	}

	service.audit(context, actor, ActionUnban, &before, target)
	service.logger.Info("user_account_unbanned",
		slog.String("user_id", accountID),
		slog.String("actor_id", actor.ID),
	)

	return target, nil
}

// ListBanned returns a page of banned accounts.
func (service *Service) ListBanned(context context.Context, params pagination.Params) ([]Account, int, error) {
	accounts, total, err := service.accountRepository.ListBanned(context, params)
	if err != nil {
		return nil, 0, fmt.Errorf("account_service_list_banned_failed: %w", err)
	}
	return accounts, total, nil
}

func (service *Service) authorizeModeration(context context.Context, actor Actor, accountID string) (*Account, error) {
	if actor.ID == accountID {
		return nil, apperr.Forbidden("Moderators cannot change their own ban status")
	}

	target, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_moderation_lookup_failed: %w", err)
	}

	if target.Role.AtLeast(actor.Role) {
		return nil, apperr.Forbidden("Insufficient role to moderate this account")
	}

	return target, nil
}

// audit records a moderation action. Failures are logged, the action stands.
func (service *Service) audit(context context.Context, actor Actor, action string, before, after *Account) {
	err := service.auditRepository.Record(context, AuditEntry{
		ActorID:   actor.ID,
		Action:    action,
		EntityID:  after.ID,
		Before:    before,
		After:     after,
		IPAddress: actor.IPAddress,
	})
	if err != nil {
		service.logger.Error("account_audit_record_failed",
			slog.String("action", action),
			slog.String("user_id", after.ID),
			slog.Any("error", err),
		)
	}
}
