package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultCodeLength = 6
	DefaultCodeTTL    = 15 * time.Minute
)

// CodeIssuer generates fixed-length numeric one-time codes and the digests
// under which they are persisted. The plaintext code only ever travels to the
// account's mailbox; the store sees the digest.
type CodeIssuer struct {
	Length int
	TTL    time.Duration
	Now    func() time.Time
}

// Issue generates a fresh code. It returns the plaintext code (for delivery),
// its digest (for storage) and the expiry deadline.
func (c *CodeIssuer) Issue() (code, hash string, expiresAt time.Time, err error) {
	length := c.Length
	if length <= 0 {
		length = DefaultCodeLength
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	buf := make([]byte, length)
	for i := range buf {
		// One uniform draw per digit keeps the distribution flat.
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", time.Time{}, fmt.Errorf("read code digit: %w", err)
		}
		buf[i] = '0' + byte(n.Int64())
	}

	code = string(buf)
	return code, HashCode(code), now().Add(ttl), nil
}

// Verify reports whether a submitted code matches the stored digest and has
// not expired. Expired and mismatched codes are indistinguishable to callers.
func (c *CodeIssuer) Verify(hash string, expiresAt time.Time, submitted string) bool {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if now().After(expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(hash)) == 1
}

// HashCode is the one-way digest under which codes are persisted, so a store
// compromise does not reveal usable codes.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
