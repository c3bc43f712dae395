// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account owns the profile fields the gate reads and the moderation
actions that change them.

Every write that can flip a gate decision (profile edits, bans, unbans) is
followed by an invalidation of the account's gate snapshot so the next
guarded request observes the new state.

# Architecture

  - Entities: Account, AuditEntry.
  - Persistence: users.account and system.auditlog via pgx.
  - Gate: PostgresAccountRepository doubles as the gate backend.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/pkg/pagination"
)

// # Domain Entities

// Account is the private profile of a user.
type Account struct {
	ID          string       `json:"id"`
	Handle      string       `json:"handle"`
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	Country     *string      `json:"country"`       // ISO 3166-1 alpha-2
	DateOfBirth *time.Time   `json:"date_of_birth"` // date only, UTC midnight
	Role        sec.UserRole `json:"role"`
	IsBanned    bool         `json:"is_banned"`
	BannedAt    *time.Time   `json:"banned_at,omitempty"`
	BanReason   *string      `json:"ban_reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// AuditEntry records a moderation action against an account.
type AuditEntry struct {
	ActorID   string
	Action    string // 'account.ban', 'account.unban'
	EntityID  string
	Before    any
	After     any
	IPAddress string
}

// Actor is the caller performing a privileged action.
type Actor struct {
	ID        string
	Role      sec.UserRole
	IPAddress string
}

// # Repository Contracts

// AccountRepository defines the persistence contract for user accounts.
type AccountRepository interface {
	/*
		FindByID retrieves an account by its unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *Account: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		UpdateProfile writes the user-editable fields of an existing account.

		Parameters:
		  - context: context.Context
		  - account: *Account (Hydrated entity with changes)

		Returns:
		  - error: apperr.Conflict on a taken handle, or storage failures
	*/
	UpdateProfile(context context.Context, account *Account) error

	/*
		SetBan flags or clears the ban on an account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - reason: *string (nil when lifting the ban)
		  - at: *time.Time (nil when lifting the ban)

		Returns:
		  - error: apperr.NotFound or storage failures
	*/
	SetBan(context context.Context, id string, reason *string, at *time.Time) error

	/*
		ListBanned pages through banned accounts, most recent ban first.

		Returns:
		  - []Account: Page of accounts
		  - int: Total banned accounts
		  - error: Retrieval failures
	*/
	ListBanned(context context.Context, params pagination.Params) ([]Account, int, error)
}

// AuditRepository appends moderation records.
type AuditRepository interface {
	Record(context context.Context, entry AuditEntry) error
}

// Invalidator drops the gate snapshot of an account.
type Invalidator interface {
	Invalidate(context context.Context, accountID string) error
}
