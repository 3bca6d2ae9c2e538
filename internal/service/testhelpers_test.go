package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"time"

	"UserAuthserver/internal/auth"
	"UserAuthserver/internal/domain"
)

// fakeAccountsStore is a map-backed AccountsStore with the same atomicity
// guarantees a real store provides: unique email at insert, conditional
// compare-and-clear consumptions under one mutex.
type fakeAccountsStore struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*domain.Account
}

func newFakeAccountsStore() *fakeAccountsStore {
	return &fakeAccountsStore{byID: make(map[string]*domain.Account)}
}

func (f *fakeAccountsStore) CreateAccount(_ context.Context, a domain.Account) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == a.Email {
			return domain.Account{}, domain.ErrEmailTaken
		}
	}
	f.nextID++
	a.ID = "acct-" + strconv.Itoa(f.nextID)
	cp := a
	f.byID[a.ID] = &cp
	return a, nil
}

func (f *fakeAccountsStore) GetAccountByEmail(_ context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			return *a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (f *fakeAccountsStore) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[id]; ok {
		return *a, nil
	}
	return domain.Account{}, domain.ErrNotFound
}

func (f *fakeAccountsStore) SetPendingEmailCode(_ context.Context, id string, code domain.PendingCode, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PendingEmailCode = &code
	a.UpdatedAt = when
	return nil
}

func (f *fakeAccountsStore) SetPendingResetCode(_ context.Context, id string, code domain.PendingCode, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PendingResetCode = &code
	a.UpdatedAt = when
	return nil
}

func (f *fakeAccountsStore) ConsumeEmailCode(_ context.Context, id, codeHash string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	pc := a.PendingEmailCode
	if pc == nil || pc.CodeHash != codeHash || now.After(pc.ExpiresAt) {
		return false, nil
	}
	a.EmailVerified = true
	a.PendingEmailCode = nil
	a.UpdatedAt = now
	return true, nil
}

func (f *fakeAccountsStore) ConsumeResetCode(_ context.Context, id, codeHash, newPasswordHash string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	pc := a.PendingResetCode
	if pc == nil || pc.CodeHash != codeHash || now.After(pc.ExpiresAt) {
		return false, nil
	}
	a.PasswordHash = newPasswordHash
	a.PendingResetCode = nil
	a.UpdatedAt = now
	return true, nil
}

func (f *fakeAccountsStore) RecordLogin(_ context.Context, id string, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	w := when
	a.LastLoginAt = &w
	a.FailedLoginCount = 0
	a.LockedUntil = nil
	a.UpdatedAt = when
	return nil
}

func (f *fakeAccountsStore) RecordFailedLogin(_ context.Context, id string, failedCount int, lockedUntil *time.Time, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.FailedLoginCount = failedCount
	a.LockedUntil = lockedUntil
	a.UpdatedAt = when
	return nil
}

func (f *fakeAccountsStore) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate, when time.Time) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if upd.DisplayName != nil {
		a.DisplayName = *upd.DisplayName
	}
	if upd.FirstName != nil {
		a.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		a.LastName = *upd.LastName
	}
	if upd.AvatarURL != nil {
		a.AvatarURL = *upd.AvatarURL
	}
	a.UpdatedAt = when
	return *a, nil
}

func (f *fakeAccountsStore) Deactivate(_ context.Context, id string, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Active = false
	a.UpdatedAt = when
	return nil
}

func (f *fakeAccountsStore) PurgeExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.byID {
		touched := false
		if a.PendingEmailCode != nil && now.After(a.PendingEmailCode.ExpiresAt) {
			a.PendingEmailCode = nil
			touched = true
		}
		if a.PendingResetCode != nil && now.After(a.PendingResetCode.ExpiresAt) {
			a.PendingResetCode = nil
			touched = true
		}
		if touched {
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	To      string
	Subject string
	Text    string
}

// fakeMailer records outgoing mail and optionally fails every send.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Text: textBody})
	return nil
}

func (m *fakeMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

func (m *fakeMailer) lastCode() string {
	last, ok := m.last()
	if !ok {
		return ""
	}
	return codeRe.FindString(last.Text)
}

// movableClock is a settable test clock.
type movableClock struct {
	mu sync.Mutex
	t  time.Time
}

func newMovableClock(t time.Time) *movableClock { return &movableClock{t: t} }

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestAuthService(store AccountsStore, mailer Mailer, clock *movableClock) *AuthService {
	return &AuthService{
		Accounts: store,
		Hasher:   auth.NewPasswordHasher(0),
		Codes:    &auth.CodeIssuer{Length: 6, TTL: 15 * time.Minute, Now: clock.Now},
		Tokens:   &auth.TokenIssuer{Secret: []byte("test-secret-test-secret-test-secret"), TTL: 7 * 24 * time.Hour, Now: clock.Now},
		Locks:    auth.LockPolicy{Threshold: 5, LockDuration: 30 * time.Minute},
		Mailer:   mailer,
		Now:      clock.Now,
	}
}
