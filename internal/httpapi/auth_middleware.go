package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"UserAuthserver/internal/domain"
)

type authCtxKey int

const authAccountKey authCtxKey = iota

// requireAuth authenticates the request from its Authorization header and
// loads the live account, so deactivation takes effect immediately even
// though tokens themselves are stateless.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		identity, err := a.authSvc.Tokens.Validate(token)
		if err != nil {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		acct, err := a.authSvc.GetAccountForToken(r.Context(), identity.AccountID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authAccountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func CurrentAccount(ctx context.Context) (domain.Account, bool) {
	acct, ok := ctx.Value(authAccountKey).(domain.Account)
	return acct, ok
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
