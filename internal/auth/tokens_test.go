package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &TokenIssuer{
		Secret: []byte("test-secret"),
		TTL:    7 * 24 * time.Hour,
		Now:    func() time.Time { return now },
	}

	tok, err := issuer.Issue("acct-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := issuer.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.AccountID != "acct-1" || id.Email != "user@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", id.ExpiresAt)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &TokenIssuer{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
		Now:    func() time.Time { return clock },
	}

	tok, err := issuer.Issue("acct-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	_, err = issuer.Validate(tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuer_BadSignature(t *testing.T) {
	issuer := &TokenIssuer{Secret: []byte("right-secret")}
	tok, err := issuer.Issue("acct-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := &TokenIssuer{Secret: []byte("wrong-secret")}
	_, err = other.Validate(tok)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestTokenIssuer_Malformed(t *testing.T) {
	issuer := &TokenIssuer{Secret: []byte("secret")}
	_, err := issuer.Validate("not.a.jwt")
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestTokenIssuer_MissingClaims(t *testing.T) {
	issuer := &TokenIssuer{Secret: []byte("secret")}
	tok, err := issuer.Issue("", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = issuer.Validate(tok)
	if !errors.Is(err, ErrTokenMissingClaims) {
		t.Fatalf("expected ErrTokenMissingClaims, got %v", err)
	}
}
