// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gate decides, for every navigation, whether the current session may see
the requested screen.

It is built from three pieces:

  - [Store]: the single authority on an account's gating attributes. It
    deduplicates concurrent fetches, serves a short-lived snapshot and fails
    open when the backend is unreachable.
  - [Evaluate]: a pure state machine mapping authentication status, attributes,
    requirements and the current path to Allow, Redirect or Pending.
  - [Composer]: mounts the guards a route asks for in ban, role, completeness
    order and renders exactly one outcome.

This layer is a UX optimization. The backend enforces the same rules.
*/
package gate

import (
	"context"
	"strings"
	"time"

	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/pkg/pointer"
)

// # Backend Contract

// Fields is the minimal column set the backend returns for gating.
type Fields struct {
	IsBanned    bool
	Country     *string
	DateOfBirth *time.Time
	Role        sec.UserRole
	DisplayName string
	Handle      string
	AvatarURL   string
}

// Backend reads gating fields for one account.
type Backend interface {
	FetchGateFields(ctx context.Context, accountID string) (Fields, error)
}

// # Attribute Snapshot

// Attributes is the per-account snapshot consulted by gates.
type Attributes struct {
	AccountID       string       `json:"account_id"`
	IsBanned        bool         `json:"is_banned"`
	HasCountry      bool         `json:"has_country"`
	HasDateOfBirth  bool         `json:"has_date_of_birth"`
	Role            sec.UserRole `json:"role"`
	IsAdmin         bool         `json:"is_admin"`
	ProfileComplete bool         `json:"profile_complete"`
	FetchedAt       time.Time    `json:"fetched_at"`

	// Degraded marks the permissive snapshot served after a failed fetch.
	Degraded bool `json:"degraded,omitempty"`
}

// Derive computes the snapshot for accountID from raw backend fields.
func Derive(accountID string, fields Fields, fetchedAt time.Time) Attributes {
	hasCountry := present(pointer.Val(fields.Country))
	hasDateOfBirth := !pointer.Val(fields.DateOfBirth).IsZero()

	role := fields.Role
	if !role.Valid() {
		role = sec.RoleMember
	}

	complete := hasCountry && hasDateOfBirth &&
		present(fields.DisplayName) &&
		present(fields.Handle) &&
		present(fields.AvatarURL)

	return Attributes{
		AccountID:       accountID,
		IsBanned:        fields.IsBanned,
		HasCountry:      hasCountry,
		HasDateOfBirth:  hasDateOfBirth,
		Role:            role,
		IsAdmin:         role.AtLeast(sec.RoleAdmin),
		ProfileComplete: complete,
		FetchedAt:       fetchedAt,
	}
}

// FailOpen is the snapshot served when the backend cannot be reached: nothing
// blocks the user, and no elevated role is granted.
func FailOpen(accountID string, at time.Time) Attributes {
	return Attributes{
		AccountID:       accountID,
		IsBanned:        false,
		HasCountry:      true,
		HasDateOfBirth:  true,
		Role:            sec.RoleMember,
		ProfileComplete: true,
		FetchedAt:       at,
		Degraded:        true,
	}
}

// CacheWorthy reports whether the snapshot is settled enough to reuse: complete,
// not banned and not a fail-open placeholder. Anything else is re-checked on
// every evaluation until the account fixes it.
func (attributes Attributes) CacheWorthy() bool {
	return attributes.ProfileComplete && !attributes.IsBanned && !attributes.Degraded
}

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}
