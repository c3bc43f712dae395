// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for account profiles.

# Schema Table Mapping
  - users.account: Identity, profile fields, role and ban status.
  - system.auditlog: Append-only record of moderation actions.
*/
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/profilegate/internal/platform/database/schema"
	"github.com/taibuivan/profilegate/internal/platform/dberr"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/internal/users/gate"
	"github.com/taibuivan/profilegate/pkg/pagination"
	"github.com/taibuivan/profilegate/pkg/uuidv7"
)

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] and [gate.Backend] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for profile management.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// PostgresAuditRepository implements [AuditRepository] using pgx.
type PostgresAuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new Postgres implementation for the moderation audit log.
func NewAuditRepository(pool *pgxpool.Pool) *PostgresAuditRepository {
	return &PostgresAuditRepository{pool: pool}
}

var accountColumns = strings.Join([]string{
	schema.UserAccount.ID, schema.UserAccount.Handle, schema.UserAccount.DisplayName,
	schema.UserAccount.AvatarURL, schema.UserAccount.Country, schema.UserAccount.DateOfBirth,
	schema.UserAccount.Role, schema.UserAccount.IsBanned, schema.UserAccount.BannedAt,
	schema.UserAccount.BanReason, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
}, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	account := &Account{}
	var role string
	err := row.Scan(
		&account.ID,
		&account.Handle,
		&account.DisplayName,
		&account.AvatarURL,
		&account.Country,
		&account.DateOfBirth,
		&role,
		&account.IsBanned,
		&account.BannedAt,
		&account.BanReason,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	account.Role = sec.UserRole(role)
	return account, err
}

// # Gate Backend

/*
FetchGateFields reads the raw columns the gate derives its snapshot from.

Parameters:
  - context: context.Context
  - accountID: string (UUID)

Returns:
  - gate.Fields: Raw gating columns
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FetchGateFields(context context.Context, accountID string) (gate.Fields, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		strings.Join(schema.UserAccount.GateColumns(), ", "),
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	var fields gate.Fields
	var role string
	err := repository.pool.QueryRow(context, query, accountID).Scan(
		&fields.IsBanned,
		&fields.Country,
		&fields.DateOfBirth,
		&role,
		&fields.DisplayName,
		&fields.Handle,
		&fields.AvatarURL,
	)
	if err != nil {
		return gate.Fields{}, fmt.Errorf("postgres_account_repo_fetch_gate_fields_failed: %w", dberr.Wrap(err, "Account"))
	}

	fields.Role = sec.UserRole(role)
	return fields, nil
}

// # AccountRepository Methods

/*
FindByID retrieves an account from the users.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		accountColumns,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	account, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", dberr.Wrap(err, "Account"))
	}

	return account, nil
}

/*
UpdateProfile writes the user-editable profile columns.

Description: Syncs DisplayName, Handle, AvatarURL, Country and DateOfBirth
and refreshes the updatedat timestamp. A taken handle surfaces as
apperr.Conflict through the unique index.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: Update failures
*/
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, account *Account) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.DisplayName, schema.UserAccount.Handle, schema.UserAccount.AvatarURL,
		schema.UserAccount.Country, schema.UserAccount.DateOfBirth, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query,
		account.ID,
		account.DisplayName,
		account.Handle,
		account.AvatarURL,
		account.Country,
		account.DateOfBirth,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", dberr.Wrap(err, "Handle"))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", dberr.Wrap(pgx.ErrNoRows, "Account"))
	}

	return nil
}

/*
SetBan flags or clears the ban columns.

Parameters:
  - context: context.Context
  - id: string
  - reason: *string
  - at: *time.Time

Returns:
  - error: apperr.NotFound or update failures
*/
func (repository *PostgresAccountRepository) SetBan(context context.Context, id string, reason *string, at *time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.IsBanned, schema.UserAccount.BanReason, schema.UserAccount.BannedAt,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query, id, at != nil, reason, at)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_ban_failed: %w", dberr.Wrap(err, "Account"))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres_account_repo_set_ban_failed: %w", dberr.Wrap(pgx.ErrNoRows, "Account"))
	}

	return nil
}

/*
ListBanned pages through banned accounts, most recent ban first.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []Account: Page of accounts
  - int: Total banned accounts
  - error: Retrieval failures
*/
func (repository *PostgresAccountRepository) ListBanned(context context.Context, params pagination.Params) ([]Account, int, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s AND %s IS NULL`,
		schema.UserAccount.Table, schema.UserAccount.IsBanned, schema.UserAccount.DeletedAt)

	var total int
	if err := repository.pool.QueryRow(context, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_count_banned_failed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s AND %s IS NULL
		ORDER BY %s DESC
		LIMIT $1 OFFSET $2`,
		accountColumns,
		schema.UserAccount.Table,
		schema.UserAccount.IsBanned, schema.UserAccount.DeletedAt,
		schema.UserAccount.BannedAt,
	)

	rows, err := repository.pool.Query(context, query, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_banned_failed: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0, params.Limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_scan_failed: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_banned_failed: %w", err)
	}

	return accounts, total, nil
}

// # AuditRepository Methods

/*
Record appends a moderation entry to system.auditlog.

Parameters:
  - context: context.Context
  - entry: AuditEntry

Returns:
  - error: Serialization or insert failures
*/
func (repository *PostgresAuditRepository) Record(context context.Context, entry AuditEntry) error {
	before, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("postgres_audit_repo_marshal_failed: %w", err)
	}

	after, err := json.Marshal(entry.After)
	if err != nil {
		return fmt.Errorf("postgres_audit_repo_marshal_failed: %w", err)
	}

	var ipAddress *string
	if entry.IPAddress != "" {
		ipAddress = &entry.IPAddress
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, 'account', $4, $5, $6, $7)`,
		schema.SystemAuditLog.Table,
		schema.SystemAuditLog.ID, schema.SystemAuditLog.ActorID, schema.SystemAuditLog.Action,
		schema.SystemAuditLog.EntityType, schema.SystemAuditLog.EntityID,
		schema.SystemAuditLog.Before, schema.SystemAuditLog.After, schema.SystemAuditLog.IPAddress,
	)

	_, err = repository.pool.Exec(context, query,
		uuidv7.New(),
		entry.ActorID,
		entry.Action,
		entry.EntityID,
		before,
		after,
		ipAddress,
	)
	if err != nil {
		return fmt.Errorf("postgres_audit_repo_record_failed: %w", err)
	}

	return nil
}
