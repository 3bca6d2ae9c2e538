package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"UserAuthserver/internal/auth"
	"UserAuthserver/internal/domain"
)

// AccountsStore is the persistence contract the auth flows rely on. The store
// enforces email uniqueness at insert time and performs the compare-and-clear
// code consumptions as single atomic updates, which is what makes duplicate
// signups and double code use safe under concurrency.
type AccountsStore interface {
	// CreateAccount inserts a new account and returns it with its assigned
	// id. A normalized-email collision returns domain.ErrEmailTaken.
	CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// SetPendingEmailCode and SetPendingResetCode overwrite the respective
	// pending code wholesale.
	SetPendingEmailCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error
	SetPendingResetCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error

	// ConsumeEmailCode atomically checks that the stored pending email code
	// matches codeHash and is unexpired, and if so marks the account
	// verified and clears the code. Returns false when the condition did
	// not hold (wrong hash, expired, already consumed).
	ConsumeEmailCode(ctx context.Context, id, codeHash string, now time.Time) (bool, error)

	// ConsumeResetCode is the same conditional update for the reset flow:
	// on match it replaces the password hash and clears the pending reset
	// code in one step.
	ConsumeResetCode(ctx context.Context, id, codeHash, newPasswordHash string, now time.Time) (bool, error)

	// RecordLogin sets last_login_at, zeroes the failed-login counter and
	// clears any lock.
	RecordLogin(ctx context.Context, id string, when time.Time) error

	// RecordFailedLogin persists the updated counter and lock deadline.
	RecordFailedLogin(ctx context.Context, id string, failedCount int, lockedUntil *time.Time, when time.Time) error

	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, when time.Time) (domain.Account, error)

	// Deactivate soft-deletes the account; the row is retained for audit.
	Deactivate(ctx context.Context, id string, when time.Time) error

	// PurgeExpiredCodes clears pending codes whose expiry has passed,
	// bounding storage growth. Returns the number of accounts touched.
	PurgeExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// Mailer delivers a message out-of-band. Failures are recoverable: the flows
// decide whether to surface them.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// AuthService orchestrates the credential lifecycle: signup, email
// verification, sign-in, resend, forgot/reset password and deactivation.
type AuthService struct {
	Accounts AccountsStore
	Hasher   auth.PasswordHasher
	Codes    *auth.CodeIssuer
	Tokens   *auth.TokenIssuer
	Locks    auth.LockPolicy
	Mailer   Mailer
	Logger   *slog.Logger

	// RevealCodes makes Signup and ResendVerification hand the raw code
	// back when delivery fails, for operator recovery. Never set in prod.
	RevealCodes bool

	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// SignupResult reports a created account. DebugCode carries the raw
// verification code only when delivery failed and RevealCodes is enabled.
type SignupResult struct {
	Account        domain.AccountView
	DeliveryFailed bool
	DebugCode      string
}

func (s *AuthService) Signup(ctx context.Context, email, password, displayName string) (SignupResult, error) {
	email = domain.NormalizeEmail(email)
	if !ValidEmail(email) {
		return SignupResult{}, domain.NewValidationError(map[string]string{"email": "must be a valid email"})
	}
	if reason := auth.ValidatePassword(password); reason != "" {
		return SignupResult{}, domain.NewValidationError(map[string]string{"password": reason})
	}

	passwordHash, err := s.Hasher.Hash(password)
	if err != nil {
		return SignupResult{}, fmt.Errorf("hash password: %w", err)
	}

	code, codeHash, expiresAt, err := s.Codes.Issue()
	if err != nil {
		return SignupResult{}, fmt.Errorf("issue verification code: %w", err)
	}

	now := s.now()
	a := domain.Account{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Active:       true,
		PendingEmailCode: &domain.PendingCode{
			CodeHash:  codeHash,
			ExpiresAt: expiresAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.Accounts.CreateAccount(ctx, a)
	if err != nil {
		return SignupResult{}, err
	}

	res := SignupResult{Account: created.View()}
	if err := s.deliverVerification(ctx, email, code, expiresAt.Sub(now)); err != nil {
		s.logger().Error("verification email delivery failed", "account_id", created.ID, "err", err)
		res.DeliveryFailed = true
		if s.RevealCodes {
			res.DebugCode = code
		}
	}
	return res, nil
}

// VerifyEmail consumes a pending verification code. Every failure mode, an
// unknown email included, reports the same generic invalid-or-expired error
// so the endpoint cannot be used to enumerate accounts.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	a, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return err
	}
	if !a.Active || a.EmailVerified || a.PendingEmailCode == nil {
		return domain.ErrInvalidCode
	}
	if !s.Codes.Verify(a.PendingEmailCode.CodeHash, a.PendingEmailCode.ExpiresAt, code) {
		return domain.ErrInvalidCode
	}

	// The conditional update is what guarantees single use: of two
	// concurrent calls with the same valid code, exactly one matches.
	ok, err := s.Accounts.ConsumeEmailCode(ctx, a.ID, a.PendingEmailCode.CodeHash, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return nil
}

type SigninResult struct {
	Token     string
	ExpiresAt time.Time
	Account   domain.AccountView
}

func (s *AuthService) Signin(ctx context.Context, email, password string) (SigninResult, error) {
	email = domain.NormalizeEmail(email)
	now := s.now()

	a, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SigninResult{}, domain.ErrInvalidCredentials
		}
		return SigninResult{}, err
	}
	// A deactivated account signs in exactly like a missing one.
	if !a.Active {
		return SigninResult{}, domain.ErrInvalidCredentials
	}
	if s.Locks.IsLocked(a, now) {
		return SigninResult{}, domain.ErrAccountLocked
	}

	ok, err := auth.VerifyPassword(a.PasswordHash, password)
	if err != nil {
		return SigninResult{}, err
	}
	if !ok {
		s.Locks.OnFailedLogin(&a, now)
		if err := s.Accounts.RecordFailedLogin(ctx, a.ID, a.FailedLoginCount, a.LockedUntil, now); err != nil {
			s.logger().Error("record failed login", "account_id", a.ID, "err", err)
		}
		return SigninResult{}, domain.ErrInvalidCredentials
	}
	// Checked after the password so an unverified account is not
	// distinguishable from a missing one without the right credentials.
	if !a.EmailVerified {
		return SigninResult{}, domain.ErrNotVerified
	}

	s.Locks.OnSuccessfulLogin(&a)
	if err := s.Accounts.RecordLogin(ctx, a.ID, now); err != nil {
		return SigninResult{}, err
	}
	a.LastLoginAt = &now

	token, err := s.Tokens.Issue(a.ID, a.Email)
	if err != nil {
		return SigninResult{}, fmt.Errorf("issue token: %w", err)
	}

	return SigninResult{
		Token:     token,
		ExpiresAt: now.Add(s.Tokens.TTL),
		Account:   a.View(),
	}, nil
}

// ResendResult mirrors SignupResult for the resend flow.
type ResendResult struct {
	DeliveryFailed bool
	DebugCode      string
}

func (s *AuthService) ResendVerification(ctx context.Context, email string) (ResendResult, error) {
	email = domain.NormalizeEmail(email)
	a, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return ResendResult{}, err
	}
	if !a.Active {
		return ResendResult{}, domain.ErrNotFound
	}
	if a.EmailVerified {
		return ResendResult{}, domain.ErrAlreadyVerified
	}

	code, codeHash, expiresAt, err := s.Codes.Issue()
	if err != nil {
		return ResendResult{}, fmt.Errorf("issue verification code: %w", err)
	}

	now := s.now()
	pending := domain.PendingCode{CodeHash: codeHash, ExpiresAt: expiresAt}
	if err := s.Accounts.SetPendingEmailCode(ctx, a.ID, pending, now); err != nil {
		return ResendResult{}, err
	}

	res := ResendResult{}
	if err := s.deliverVerification(ctx, email, code, expiresAt.Sub(now)); err != nil {
		s.logger().Error("verification email delivery failed", "account_id", a.ID, "err", err)
		res.DeliveryFailed = true
		if s.RevealCodes {
			res.DebugCode = code
		}
	}
	return res, nil
}

// ForgotPassword issues a reset code when the account exists and is active.
// The caller observes the same successful outcome whether or not the email is
// registered; delivery failures are logged, never surfaced.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	a, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !a.Active {
		return nil
	}

	code, codeHash, expiresAt, err := s.Codes.Issue()
	if err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}

	now := s.now()
	pending := domain.PendingCode{CodeHash: codeHash, ExpiresAt: expiresAt}
	if err := s.Accounts.SetPendingResetCode(ctx, a.ID, pending, now); err != nil {
		return err
	}

	subject, html, text := resetEmail(code, expiresAt.Sub(now))
	if err := s.Mailer.Send(ctx, email, subject, html, text); err != nil {
		s.logger().Error("reset email delivery failed", "account_id", a.ID, "err", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if reason := auth.ValidatePassword(newPassword); reason != "" {
		return domain.NewValidationError(map[string]string{"password": reason})
	}

	email = domain.NormalizeEmail(email)
	a, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return err
	}
	if !a.Active || a.PendingResetCode == nil {
		return domain.ErrInvalidCode
	}
	if !s.Codes.Verify(a.PendingResetCode.CodeHash, a.PendingResetCode.ExpiresAt, code) {
		return domain.ErrInvalidCode
	}

	newHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.Accounts.ConsumeResetCode(ctx, a.ID, a.PendingResetCode.CodeHash, newHash, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return nil
}

// Deactivate soft-deletes the account. There is no reactivation; subsequent
// sign-ins behave as if the account did not exist and authenticated calls are
// refused.
func (s *AuthService) Deactivate(ctx context.Context, accountID string) error {
	a, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !a.Active {
		return domain.ErrNotFound
	}
	return s.Accounts.Deactivate(ctx, a.ID, s.now())
}

// GetAccountForToken resolves the account behind a validated token identity,
// for the request layer's auth middleware. A bearer token has no server-side
// session, so logout is a client-side discard; nothing to do here.
func (s *AuthService) GetAccountForToken(ctx context.Context, accountID string) (domain.Account, error) {
	a, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.ErrUnauthorized
		}
		return domain.Account{}, err
	}
	if !a.Active {
		return domain.Account{}, domain.ErrForbidden
	}
	return a, nil
}

func (s *AuthService) deliverVerification(ctx context.Context, email, code string, ttl time.Duration) error {
	subject, html, text := verificationEmail(code, ttl)
	return s.Mailer.Send(ctx, email, subject, html, text)
}

// ValidEmail reports whether s parses as a bare RFC 5322 address.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
