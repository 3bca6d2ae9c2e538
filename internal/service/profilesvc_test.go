package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"UserAuthserver/internal/domain"
)

func strptr(s string) *string { return &s }

func TestProfileUpdateAndGet(t *testing.T) {
	clock := newMovableClock(testStart)
	store := newFakeAccountsStore()
	mailer := &fakeMailer{}
	authSvc := newTestAuthService(store, mailer, clock)
	signupAndVerify(t, authSvc, mailer, "a@x.com", "Abcd123!")
	a, _ := store.GetAccountByEmail(context.Background(), "a@x.com")

	svc := &ProfileService{Accounts: store, Now: clock.Now}

	view, err := svc.UpdateProfile(context.Background(), a.ID, domain.ProfileUpdate{
		FirstName: strptr("  Ada "),
		LastName:  strptr("Lovelace"),
		AvatarURL: strptr("https://cdn.example.com/ada.png"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if view.FullName != "Ada Lovelace" {
		t.Fatalf("expected derived full name, got %q", view.FullName)
	}
	if view.AvatarURL != "https://cdn.example.com/ada.png" {
		t.Fatalf("unexpected avatar: %q", view.AvatarURL)
	}

	got, err := svc.GetProfile(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.FirstName != "Ada" || got.LastName != "Lovelace" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	clock := newMovableClock(testStart)
	store := newFakeAccountsStore()
	svc := &ProfileService{Accounts: store, Now: clock.Now}

	_, err := svc.UpdateProfile(context.Background(), "acct-1", domain.ProfileUpdate{
		DisplayName: strptr(strings.Repeat("x", 49)),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("long display name: %v", err)
	}

	_, err = svc.UpdateProfile(context.Background(), "acct-1", domain.ProfileUpdate{
		AvatarURL: strptr("ftp://example.com/a.png"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad avatar scheme: %v", err)
	}
}

func TestProfileDeactivatedAccount(t *testing.T) {
	clock := newMovableClock(testStart)
	store := newFakeAccountsStore()
	mailer := &fakeMailer{}
	authSvc := newTestAuthService(store, mailer, clock)
	signupAndVerify(t, authSvc, mailer, "a@x.com", "Abcd123!")
	a, _ := store.GetAccountByEmail(context.Background(), "a@x.com")
	if err := authSvc.Deactivate(context.Background(), a.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	svc := &ProfileService{Accounts: store, Now: clock.Now}
	if _, err := svc.GetProfile(context.Background(), a.ID); !errors.Is(err, domain.ErrDeactivated) {
		t.Fatalf("GetProfile on deactivated: %v", err)
	}
	if _, err := svc.UpdateProfile(context.Background(), a.ID, domain.ProfileUpdate{DisplayName: strptr("x")}); !errors.Is(err, domain.ErrDeactivated) {
		t.Fatalf("UpdateProfile on deactivated: %v", err)
	}
}
