package auth

import (
	"testing"
	"time"
)

func TestCodeIssuer_Issue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &CodeIssuer{Length: 6, TTL: 15 * time.Minute, Now: func() time.Time { return now }}

	code, hash, expiresAt, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}
	if hash == code {
		t.Fatalf("hash must not equal plaintext code")
	}
	if hash != HashCode(code) {
		t.Fatalf("hash mismatch")
	}
	if !expiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry: %s", expiresAt)
	}
}

func TestCodeIssuer_Defaults(t *testing.T) {
	issuer := &CodeIssuer{}
	code, _, _, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != DefaultCodeLength {
		t.Fatalf("expected default length %d, got %d", DefaultCodeLength, len(code))
	}
}

func TestCodeIssuer_Verify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	issuer := &CodeIssuer{Now: func() time.Time { return clock }}

	code, hash, expiresAt, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if !issuer.Verify(hash, expiresAt, code) {
		t.Fatalf("expected valid code to verify")
	}
	if issuer.Verify(hash, expiresAt, "000000") && code != "000000" {
		t.Fatalf("expected wrong code to fail")
	}

	clock = expiresAt.Add(time.Second)
	if issuer.Verify(hash, expiresAt, code) {
		t.Fatalf("expected expired code to fail")
	}
}

func TestCodeIssuer_CodesDiffer(t *testing.T) {
	issuer := &CodeIssuer{Length: 8}
	a, _, _, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, _, _, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// 10^-8 collision odds; a flake here points at the randomness source.
	if a == b {
		t.Fatalf("two issued codes were identical: %s", a)
	}
}
