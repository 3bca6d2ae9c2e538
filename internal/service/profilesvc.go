package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"UserAuthserver/internal/domain"
)

// ProfileService reads and mutates the public profile fields of an account.
type ProfileService struct {
	Accounts AccountsStore
	Now      func() time.Time
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID string) (domain.AccountView, error) {
	a, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.AccountView{}, err
	}
	if !a.Active {
		return domain.AccountView{}, domain.ErrDeactivated
	}
	return a.View(), nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, accountID string, upd domain.ProfileUpdate) (domain.AccountView, error) {
	fields := map[string]string{}
	if upd.DisplayName != nil {
		*upd.DisplayName = strings.TrimSpace(*upd.DisplayName)
		if msg := validFreeText(*upd.DisplayName, 48); msg != "" {
			fields["display_name"] = msg
		}
	}
	if upd.FirstName != nil {
		*upd.FirstName = strings.TrimSpace(*upd.FirstName)
		if msg := validFreeText(*upd.FirstName, 48); msg != "" {
			fields["first_name"] = msg
		}
	}
	if upd.LastName != nil {
		*upd.LastName = strings.TrimSpace(*upd.LastName)
		if msg := validFreeText(*upd.LastName, 48); msg != "" {
			fields["last_name"] = msg
		}
	}
	if upd.AvatarURL != nil {
		*upd.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
		if msg := validAvatarURL(*upd.AvatarURL); msg != "" {
			fields["avatar_url"] = msg
		}
	}
	if len(fields) > 0 {
		return domain.AccountView{}, domain.NewValidationError(fields)
	}

	a, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.AccountView{}, err
	}
	if !a.Active {
		return domain.AccountView{}, domain.ErrDeactivated
	}

	updated, err := s.Accounts.UpdateProfile(ctx, accountID, upd, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccountView{}, domain.ErrNotFound
		}
		return domain.AccountView{}, err
	}
	return updated.View(), nil
}

func validFreeText(s string, maxLen int) string {
	if len(s) > maxLen {
		return fmt.Sprintf("must be %d characters or less", maxLen)
	}
	for _, r := range s {
		if r < 32 {
			return "contains invalid characters"
		}
	}
	return ""
}

func validAvatarURL(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 512 {
		return "must be 512 characters or less"
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "must be an absolute URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "scheme must be http or https"
	}
	return ""
}
