package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
	ErrEmailTaken   = errors.New("email_taken")
	ErrValidation   = errors.New("validation")

	// ErrInvalidCredentials covers both "no such account" and "wrong
	// password" so the two are indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrInvalidCode covers missing, expired, mismatched and already
	// consumed one-time codes, and unknown emails on code-bearing flows.
	ErrInvalidCode = errors.New("invalid_or_expired_code")

	ErrNotVerified     = errors.New("email_not_verified")
	ErrAlreadyVerified = errors.New("already_verified")
	ErrAccountLocked   = errors.New("account_locked")
	ErrDeactivated     = errors.New("account_deactivated")
	ErrRateLimited     = errors.New("rate_limited")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
