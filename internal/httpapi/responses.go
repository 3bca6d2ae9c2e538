package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"UserAuthserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps service errors onto the wire taxonomy. Credential and
// code failures stay deliberately vague so responses cannot be used to probe
// which accounts exist.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, domain.ErrAlreadyVerified):
		WriteError(w, http.StatusConflict, "already_verified", "email already verified")
	case errors.Is(err, domain.ErrInvalidCode):
		WriteError(w, http.StatusBadRequest, "invalid_code", "invalid or expired code")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrNotVerified):
		WriteError(w, http.StatusForbidden, "not_verified", "email not verified")
	case errors.Is(err, domain.ErrAccountLocked):
		WriteError(w, http.StatusForbidden, "account_locked", "account temporarily locked, try again later")
	case errors.Is(err, domain.ErrDeactivated):
		WriteError(w, http.StatusForbidden, "deactivated", "account deactivated")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, retry later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
