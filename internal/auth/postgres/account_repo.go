// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const accountColumns = `a.id, a.username, a.password_hash, a.status, a.category, a.role,
	a.last_login_at, a.created_at, a.updated_at`

// AccountRepository implements auth.AccountRepository.
type AccountRepository struct {
	db  DB
	now func() time.Time
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// Create inserts the account and its profile in one transaction.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account, profile *auth.Profile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "begin").Wrap(err)
	}

	if err := insertAccount(ctx, tx, account, profile); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // insert error wins
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE_USERNAME").
				With("username", account.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("username", account.Username).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

func insertAccount(ctx context.Context, tx pgx.Tx, account *auth.Account, profile *auth.Profile) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, status, category, role,
			last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		string(account.Status),
		string(account.Category),
		account.Role,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		return err //nolint:wrapcheck // Create wraps
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO profiles (
			account_id, full_name, nickname, email, phone, birthdate,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.ID.String(),
		profile.FullName,
		profile.Nickname,
		profile.Email,
		profile.Phone,
		profile.Birthdate,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return err //nolint:wrapcheck // Create wraps
}

// GetByID returns the account with id.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id.String())
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return account, nil
}

// FindByLogin matches username or profile email, case-insensitively. A
// username match wins over an email match.
func (r *AccountRepository) FindByLogin(ctx context.Context, login string, category auth.Category, statuses ...auth.Status) (*auth.Account, error) {
	if len(statuses) == 0 {
		statuses = []auth.Status{auth.StatusInactive, auth.StatusActive, auth.StatusSuspended, auth.StatusBlacklisted}
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		WHERE a.category = $2
		  AND a.status = ANY($3)
		  AND (LOWER(a.username) = LOWER($1) OR LOWER(p.email) = LOWER($1))
		ORDER BY (LOWER(a.username) = LOWER($1)) DESC, a.created_at
		LIMIT 1
	`, login, string(category), names)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("category", category).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").With("category", category).Wrap(err)
	}
	return account, nil
}

// UsernameExists reports whether any account, in any category, uses username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1))`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").With("username", username).Wrap(err)
	}
	return exists, nil
}

// GetProfile returns the profile of accountID.
func (r *AccountRepository) GetProfile(ctx context.Context, accountID ulid.ULID) (*auth.Profile, error) {
	var (
		idStr string
		p     auth.Profile
	)
	err := r.db.QueryRow(ctx, `
		SELECT account_id, full_name, nickname, email, phone, birthdate, created_at, updated_at
		FROM profiles
		WHERE account_id = $1
	`, accountID.String()).Scan(
		&idStr, &p.FullName, &p.Nickname, &p.Email, &p.Phone, &p.Birthdate, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").With("account_id", accountID.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").With("account_id", accountID.String()).Wrap(err)
	}
	p.AccountID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PROFILE_INVALID_ID").With("account_id", idStr).Wrap(err)
	}
	return &p, nil
}

// UpdateStatus sets the account status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id ulid.ULID, status auth.Status) error {
	return r.update(ctx, "update status", id,
		`UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`,
		string(status))
}

// UpdateLastLogin records a login time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.update(ctx, "update last login", id,
		`UPDATE accounts SET last_login_at = $2, updated_at = $3 WHERE id = $1`,
		at)
}

// UpdatePasswordHash replaces the hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	return r.update(ctx, "update password hash", id,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		hash)
}

// CompleteReset stores hash and reactivates the account, but only while it
// is still SUSPENDED. Concurrent redemptions therefore cannot both apply.
func (r *AccountRepository) CompleteReset(ctx context.Context, id ulid.ULID, hash string) error {
	return r.update(ctx, "complete reset", id, `
		UPDATE accounts
		SET password_hash = $2, status = 'ACTIVE', updated_at = $3
		WHERE id = $1 AND status = 'SUSPENDED'
	`, hash)
}

// update runs a single-row UPDATE taking (id, value, updated_at).
func (r *AccountRepository) update(ctx context.Context, operation string, id ulid.ULID, sql string, value any) error {
	tag, err := r.db.Exec(ctx, sql, id.String(), value, r.now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount leaves scan errors, pgx.ErrNoRows included, uncoded so the
// caller's code is the one reported.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr, status, category string
		a                       auth.Account
	)
	err := row.Scan(
		&idStr, &a.Username, &a.PasswordHash, &status, &category, &a.Role,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	a.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	a.Status = auth.Status(status)
	a.Category = auth.Category(category)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
