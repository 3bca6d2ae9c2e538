package domain

import (
	"strings"
	"time"
)

// PendingCode is a hashed one-time code waiting to be consumed, either for
// email verification or for a password reset. The plaintext code is never
// stored anywhere.
type PendingCode struct {
	CodeHash  string
	ExpiresAt time.Time
}

// Expired reports whether the code can no longer be consumed at the given time.
func (c PendingCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Account is the sole persistent entity. Email is stored normalized
// (lower-cased, trimmed) and is unique at the store level.
type Account struct {
	ID           string
	Email        string
	PasswordHash string

	DisplayName string
	FirstName   string
	LastName    string
	AvatarURL   string

	EmailVerified    bool
	PendingEmailCode *PendingCode
	PendingResetCode *PendingCode

	LastLoginAt      *time.Time
	FailedLoginCount int
	LockedUntil      *time.Time
	Active           bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName derives a display-friendly name from the profile sub-fields,
// falling back to DisplayName.
func (a Account) FullName() string {
	full := strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
	if full != "" {
		return full
	}
	return strings.TrimSpace(a.DisplayName)
}

// Locked reports whether a lock is currently in effect. A lock lapses
// silently once LockedUntil passes.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// AccountView is the public projection of an account. It never carries the
// password hash, pending codes, failed-login counters, or lock state.
type AccountView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name,omitempty"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	FullName      string     `json:"full_name,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// View builds the public projection.
func (a Account) View() AccountView {
	return AccountView{
		ID:            a.ID,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		FullName:      a.FullName(),
		AvatarURL:     a.AvatarURL,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		LastLoginAt:   a.LastLoginAt,
	}
}

// ProfileUpdate names the mutable profile fields. Nil means "leave as is";
// a pointer to the empty string clears the field.
type ProfileUpdate struct {
	DisplayName *string
	FirstName   *string
	LastName    *string
	AvatarURL   *string
}

// NormalizeEmail lower-cases and trims an email address. Every store write
// and every lookup goes through this.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
