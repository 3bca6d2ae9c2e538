package httpapi

import (
	"net/http"
	"strings"
	"time"

	"UserAuthserver/internal/domain"
)

const timeFormat = time.RFC3339

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type signupResponse struct {
	Account        domain.AccountView `json:"account"`
	DeliveryFailed bool               `json:"verification_delivery_failed,omitempty"`
	DebugCode      string             `json:"debug_code,omitempty"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if !a.allowStrict(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	res, err := a.authSvc.Signup(r.Context(), req.Email, req.Password, strings.TrimSpace(req.DisplayName))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, signupResponse{
		Account:        res.Account,
		DeliveryFailed: res.DeliveryFailed,
		DebugCode:      res.DebugCode,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.Email == "" || req.Code == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "code": "required"}))
		return
	}

	if !a.allowCode(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	if err := a.authSvc.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinResponse struct {
	Token     string             `json:"token"`
	ExpiresAt string             `json:"expires_at"`
	Account   domain.AccountView `json:"account"`
}

func (a *api) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	if !a.allowStrict(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	res, err := a.authSvc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, signinResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC().Format(timeFormat),
		Account:   res.Account,
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeDispatchResponse struct {
	Message        string `json:"message"`
	DeliveryFailed bool   `json:"delivery_failed,omitempty"`
	DebugCode      string `json:"debug_code,omitempty"`
}

func (a *api) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required"}))
		return
	}

	if !a.allowCode(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	res, err := a.authSvc.ResendVerification(r.Context(), req.Email)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, codeDispatchResponse{
		Message:        "verification code sent",
		DeliveryFailed: res.DeliveryFailed,
		DebugCode:      res.DebugCode,
	})
}

// handleForgotPassword responds identically whether or not the email matches
// an account.
func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required"}))
		return
	}

	if !a.allowStrict(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	if err := a.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, codeDispatchResponse{
		Message: "if the account exists, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.Email == "" || req.Code == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "code": "required"}))
		return
	}

	if !a.allowStrict(r, req.Email) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	if err := a.authSvc.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tokens are stateless, so logout is a client-side discard. The endpoint
// exists so clients have a uniform call and it still demands a valid token.
func (a *api) handleLogout(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) allowStrict(r *http.Request, email string) bool {
	return a.throttle(r.Context(), a.strictLimiter,
		"ip:"+clientIP(r),
		"email:"+domain.NormalizeEmail(email),
	)
}

func (a *api) allowCode(r *http.Request, email string) bool {
	return a.throttle(r.Context(), a.codeLimiter,
		"ip:"+clientIP(r),
		"email:"+domain.NormalizeEmail(email),
	)
}
