// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/apperr"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/users/account"
	"github.com/taibuivan/profilegate/pkg/pagination"
	"github.com/taibuivan/profilegate/pkg/pointer"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// # Fakes

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]account.Account
}

func newMemoryAccounts(seed ...account.Account) *memoryAccounts {
	repository := &memoryAccounts{accounts: map[string]account.Account{}}
	for _, entry := range seed {
		repository.accounts[entry.ID] = entry
	}
	return repository
}

func (repository *memoryAccounts) FindByID(_ context.Context, id string) (*account.Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	entry, ok := repository.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return &entry, nil
}

func (repository *memoryAccounts) UpdateProfile(_ context.Context, updated *account.Account) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for id, existing := range repository.accounts {
		if id != updated.ID && existing.Handle == updated.Handle {
			return apperr.Conflict("Handle already exists")
		}
	}
	repository.accounts[updated.ID] = *updated
	return nil
}

func (repository *memoryAccounts) SetBan(_ context.Context, id string, reason *string, at *time.Time) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	entry, ok := repository.accounts[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	entry.IsBanned = at != nil
	entry.BanReason = reason
	entry.BannedAt = at
	repository.accounts[id] = entry
	return nil
}

func (repository *memoryAccounts) ListBanned(_ context.Context, params pagination.Params) ([]account.Account, int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	var banned []account.Account
	for _, entry := range repository.accounts {
		if entry.IsBanned {
			banned = append(banned, entry)
		}
	}
	return banned, len(banned), nil
}

type recordingAudit struct {
	entries []account.AuditEntry
	err     error
}

func (audit *recordingAudit) Record(_ context.Context, entry account.AuditEntry) error {
	audit.entries = append(audit.entries, entry)
	return audit.err
}

type recordingInvalidator struct {
	invalidated []string
	err         error
}

func (invalidator *recordingInvalidator) Invalidate(_ context.Context, accountID string) error {
	invalidator.invalidated = append(invalidator.invalidated, accountID)
	return invalidator.err
}

// # Fixtures

const (
	memberID    = "0192d5c8-0000-7000-8000-000000000001"
	moderatorID = "0192d5c8-0000-7000-8000-000000000002"
	adminID     = "0192d5c8-0000-7000-8000-000000000003"
)

func seedAccounts() *memoryAccounts {
	return newMemoryAccounts(
		account.Account{ID: memberID, Handle: "member", DisplayName: "Member", Role: sec.RoleMember},
		account.Account{ID: moderatorID, Handle: "mod", DisplayName: "Moderator", Role: sec.RoleModerator},
		account.Account{ID: adminID, Handle: "admin", DisplayName: "Admin", Role: sec.RoleAdmin},
	)
}

type serviceFixture struct {
	accounts    *memoryAccounts
	audit       *recordingAudit
	invalidator *recordingInvalidator
	service     *account.Service
}

func newServiceFixture() serviceFixture {
	f := serviceFixture{
		accounts:    seedAccounts(),
		audit:       &recordingAudit{},
		invalidator: &recordingInvalidator{},
	}
	f.service = account.NewService(f.accounts, f.audit, f.invalidator, discard)
	return f
}

var moderator = account.Actor{ID: moderatorID, Role: sec.RoleModerator}

// # Tests

/*
TestService_UpdateProfile applies partial changes and invalidates the gate.
*/
func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	dob := time.Date(1990, 4, 2, 15, 30, 0, 0, time.UTC)
	updated, err := f.service.UpdateProfile(ctx, memberID, account.UpdateProfileInput{
		Handle:      pointer.To("Bùi Tài"),
		AvatarURL:   pointer.To("https://cdn.example.com/a.png"),
		Country:     pointer.To(" vn "),
		DateOfBirth: &dob,
	})
	require.NoError(t, err)

	assert.Equal(t, "Member", updated.DisplayName, "unset fields are unchanged")
	assert.Equal(t, "bui_tai", updated.Handle)
	assert.Equal(t, "VN", pointer.Val(updated.Country))
	assert.Equal(t, time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC), pointer.Val(updated.DateOfBirth))
	assert.Equal(t, []string{memberID}, f.invalidator.invalidated)

	stored, err := f.service.GetProfile(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, "bui_tai", stored.Handle)

	cleared, err := f.service.UpdateProfile(ctx, memberID, account.UpdateProfileInput{Country: pointer.To("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Country)
	assert.Len(t, f.invalidator.invalidated, 2)
}

/*
TestService_UpdateProfile_Failures does not invalidate when nothing was written.
*/
func TestService_UpdateProfile_Failures(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	_, err := f.service.UpdateProfile(ctx, memberID, account.UpdateProfileInput{Handle: pointer.To("admin")})
	assert.Equal(t, apperr.CodeConflict, apperr.As(err).Code)

	_, err = f.service.UpdateProfile(ctx, "missing", account.UpdateProfileInput{})
	assert.True(t, apperr.IsNotFound(err))

	assert.Empty(t, f.invalidator.invalidated)

	f.invalidator.err = errors.New("redis down")
	_, err = f.service.UpdateProfile(ctx, memberID, account.UpdateProfileInput{DisplayName: pointer.To("New")})
	assert.ErrorContains(t, err, "account_service_invalidate_failed")
}

/*
TestService_BanAndUnban flips ban state, invalidates and audits.
*/
func TestService_BanAndUnban(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	banned, err := f.service.Ban(ctx, moderator, memberID, "  spam ")
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.Equal(t, "spam", pointer.Val(banned.BanReason))
	assert.NotNil(t, banned.BannedAt)

	list, total, err := f.service.ListBanned(ctx, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, memberID, list[0].ID)

	unbanned, err := f.service.Unban(ctx, moderator, memberID)
	require.NoError(t, err)
	assert.False(t, unbanned.IsBanned)
	assert.Nil(t, unbanned.BannedAt)

	assert.Equal(t, []string{memberID, memberID}, f.invalidator.invalidated)
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, account.ActionBan, f.audit.entries[0].Action)
	assert.Equal(t, account.ActionUnban, f.audit.entries[1].Action)
	assert.Equal(t, moderatorID, f.audit.entries[0].ActorID)
	assert.False(t, f.audit.entries[0].Before.(*account.Account).IsBanned)
}

/*
TestService_BanIsRestricted refuses self-bans and bans of equal or higher roles.
*/
func TestService_BanIsRestricted(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	tests := []struct {
		name   string
		actor  account.Actor
		target string
	}{
		{"self", moderator, moderatorID},
		{"higher_role", moderator, adminID},
		{"equal_role", account.Actor{ID: "other-admin", Role: sec.RoleAdmin}, adminID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Ban(ctx, tt.actor, tt.target, "reason")
			require.Error(t, err)
			assert.Equal(t, apperr.CodeForbidden, apperr.As(err).Code)
		})
	}

	_, err := f.service.Ban(ctx, account.Actor{ID: adminID, Role: sec.RoleAdmin}, moderatorID, "abuse")
	assert.NoError(t, err, "admins outrank moderators")

	assert.Equal(t, []string{moderatorID}, f.invalidator.invalidated)
}

/*
TestService_AuditFailureKeepsTheBan logs and continues when the audit log is down.
*/
func TestService_AuditFailureKeepsTheBan(t *testing.T) {
	f := newServiceFixture()
	f.audit.err = errors.New("insert failed")

	banned, err := f.service.Ban(context.Background(), moderator, memberID, "spam")
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.Equal(t, []string{memberID}, f.invalidator.invalidated)
}
