package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"UserAuthserver/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `
	id, email, password_hash, display_name, first_name, last_name, avatar_url,
	email_verified, email_code_hash, email_code_expires_at,
	reset_code_hash, reset_code_expires_at,
	last_login_at, failed_login_count, locked_until, active,
	created_at, updated_at`

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (
			id, email, password_hash, display_name, first_name, last_name, avatar_url,
			email_verified, email_code_hash, email_code_expires_at,
			active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + accountColumns

	id := uuid.NewString()
	var codeHash, codeExpires any
	if a.PendingEmailCode != nil {
		codeHash = a.PendingEmailCode.CodeHash
		codeExpires = a.PendingEmailCode.ExpiresAt
	}

	row := s.pool.QueryRow(ctx, q,
		id, a.Email, a.PasswordHash, a.DisplayName, a.FirstName, a.LastName, a.AvatarURL,
		a.EmailVerified, codeHash, codeExpires,
		a.Active, a.CreatedAt, a.UpdatedAt,
	)
	created, err := scanAccount(row)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return domain.Account{}, domain.ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 LIMIT 1`

	a, err := scanAccount(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) SetPendingEmailCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error {
	const q = `
		UPDATE accounts
		SET email_code_hash = $2, email_code_expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, code.CodeHash, code.ExpiresAt, when)
	if err != nil {
		return fmt.Errorf("set pending email code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) SetPendingResetCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error {
	const q = `
		UPDATE accounts
		SET reset_code_hash = $2, reset_code_expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, code.CodeHash, code.ExpiresAt, when)
	if err != nil {
		return fmt.Errorf("set pending reset code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumeEmailCode is the compare-and-clear behind email verification: the
// check and the mutation happen in one conditional UPDATE, so of two
// concurrent calls exactly one sees a row affected.
func (s *AccountsStore) ConsumeEmailCode(ctx context.Context, id, codeHash string, now time.Time) (bool, error) {
	const q = `
		UPDATE accounts
		SET email_verified = true,
		    email_code_hash = NULL,
		    email_code_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
		  AND active
		  AND NOT email_verified
		  AND email_code_hash = $2
		  AND email_code_expires_at > $3
	`
	tag, err := s.pool.Exec(ctx, q, id, codeHash, now)
	if err != nil {
		return false, fmt.Errorf("consume email code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeResetCode swaps the password hash and clears the pending reset code
// in the same conditional UPDATE.
func (s *AccountsStore) ConsumeResetCode(ctx context.Context, id, codeHash, newPasswordHash string, now time.Time) (bool, error) {
	const q = `
		UPDATE accounts
		SET password_hash = $3,
		    reset_code_hash = NULL,
		    reset_code_expires_at = NULL,
		    updated_at = $4
		WHERE id = $1
		  AND active
		  AND reset_code_hash = $2
		  AND reset_code_expires_at > $4
	`
	tag, err := s.pool.Exec(ctx, q, id, codeHash, newPasswordHash, now)
	if err != nil {
		return false, fmt.Errorf("consume reset code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *AccountsStore) RecordLogin(ctx context.Context, id string, when time.Time) error {
	const q = `
		UPDATE accounts
		SET last_login_at = $2, failed_login_count = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, when)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) RecordFailedLogin(ctx context.Context, id string, failedCount int, lockedUntil *time.Time, when time.Time) error {
	const q = `
		UPDATE accounts
		SET failed_login_count = $2, locked_until = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, failedCount, lockedUntil, when)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, when time.Time) (domain.Account, error) {
	const q = `
		UPDATE accounts
		SET display_name = COALESCE($2, display_name),
		    first_name   = COALESCE($3, first_name),
		    last_name    = COALESCE($4, last_name),
		    avatar_url   = COALESCE($5, avatar_url),
		    updated_at   = $6
		WHERE id = $1
		RETURNING ` + accountColumns

	row := s.pool.QueryRow(ctx, q, id, upd.DisplayName, upd.FirstName, upd.LastName, upd.AvatarURL, when)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) Deactivate(ctx context.Context, id string, when time.Time) error {
	const q = `
		UPDATE accounts
		SET active = false, updated_at = $2
		WHERE id = $1 AND active
	`
	tag, err := s.pool.Exec(ctx, q, id, when)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) PurgeExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		UPDATE accounts
		SET email_code_hash       = CASE WHEN email_code_expires_at <= $1 THEN NULL ELSE email_code_hash END,
		    email_code_expires_at = CASE WHEN email_code_expires_at <= $1 THEN NULL ELSE email_code_expires_at END,
		    reset_code_hash       = CASE WHEN reset_code_expires_at <= $1 THEN NULL ELSE reset_code_hash END,
		    reset_code_expires_at = CASE WHEN reset_code_expires_at <= $1 THEN NULL ELSE reset_code_expires_at END,
		    updated_at            = $1
		WHERE email_code_expires_at <= $1 OR reset_code_expires_at <= $1
	`
	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a           domain.Account
		idUUID      pgtype.UUID
		emailCode   pgtype.Text
		emailCodeAt pgtype.Timestamptz
		resetCode   pgtype.Text
		resetCodeAt pgtype.Timestamptz
		lastLoginTS pgtype.Timestamptz
		lockedTS    pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&a.Email,
		&a.PasswordHash,
		&a.DisplayName,
		&a.FirstName,
		&a.LastName,
		&a.AvatarURL,
		&a.EmailVerified,
		&emailCode,
		&emailCodeAt,
		&resetCode,
		&resetCodeAt,
		&lastLoginTS,
		&a.FailedLoginCount,
		&lockedTS,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.ID = uuidOrEmpty(idUUID)
	if emailCode.Valid && emailCodeAt.Valid {
		a.PendingEmailCode = &domain.PendingCode{CodeHash: emailCode.String, ExpiresAt: emailCodeAt.Time}
	}
	if resetCode.Valid && resetCodeAt.Valid {
		a.PendingResetCode = &domain.PendingCode{CodeHash: resetCode.String, ExpiresAt: resetCodeAt.Time}
	}
	a.LastLoginAt = timestamptzPtr(lastLoginTS)
	a.LockedUntil = timestamptzPtr(lockedTS)
	return a, nil
}
