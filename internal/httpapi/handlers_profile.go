package httpapi

import (
	"net/http"

	"UserAuthserver/internal/domain"
)

type accountEnvelope struct {
	Account domain.AccountView `json:"account"`
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := CurrentAccount(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	view, err := a.profileSvc.GetProfile(r.Context(), acct.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, accountEnvelope{Account: view})
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	AvatarURL   *string `json:"avatar_url"`
}

func (a *api) handleMeUpdate(w http.ResponseWriter, r *http.Request) {
	acct, ok := CurrentAccount(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.DisplayName == nil && req.FirstName == nil && req.LastName == nil && req.AvatarURL == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"profile": "at least one field is required"}))
		return
	}

	view, err := a.profileSvc.UpdateProfile(r.Context(), acct.ID, domain.ProfileUpdate{
		DisplayName: req.DisplayName,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, accountEnvelope{Account: view})
}

func (a *api) handleMeDeactivate(w http.ResponseWriter, r *http.Request) {
	acct, ok := CurrentAccount(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Deactivate(r.Context(), acct.ID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
