package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenMalformed     = errors.New("token_malformed")
	ErrTokenMissingClaims = errors.New("token_missing_claims")
)

// TokenClaims is the JWT payload: subject is the account id, plus the
// account's email.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIdentity is what a successfully validated token proves.
type TokenIdentity struct {
	AccountID string
	Email     string
	ExpiresAt time.Time
}

// TokenIssuer mints and validates stateless HS256 bearer tokens. There is no
// server-side session; a token stays valid until its own expiry.
type TokenIssuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (t *TokenIssuer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *TokenIssuer) ttl() time.Duration {
	if t.TTL > 0 {
		return t.TTL
	}
	return DefaultTokenTTL
}

func (t *TokenIssuer) Issue(accountID, email string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl())),
		},
		Email: email,
	})
	return token.SignedString(t.Secret)
}

// Validate parses and verifies a token. Failures are distinguishable for
// logging and tests; callers surface them all as the same generic message.
func (t *TokenIssuer) Validate(tokenString string) (TokenIdentity, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(tok *jwt.Token) (any, error) { return t.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenIdentity{}, ErrTokenExpired
		}
		return TokenIdentity{}, ErrTokenMalformed
	}
	if !parsed.Valid {
		return TokenIdentity{}, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.Email == "" || claims.ExpiresAt == nil {
		return TokenIdentity{}, ErrTokenMissingClaims
	}

	return TokenIdentity{
		AccountID: claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
