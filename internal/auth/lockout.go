package auth

import (
	"time"

	"UserAuthserver/internal/domain"
)

const (
	DefaultLockThreshold = 5
	DefaultLockDuration  = 30 * time.Minute
)

// LockPolicy tracks failed sign-in attempts on an account and locks it
// temporarily once a threshold is hit. The policy mutates the account record;
// the caller persists it.
type LockPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

func (p LockPolicy) threshold() int {
	if p.Threshold > 0 {
		return p.Threshold
	}
	return DefaultLockThreshold
}

func (p LockPolicy) lockDuration() time.Duration {
	if p.LockDuration > 0 {
		return p.LockDuration
	}
	return DefaultLockDuration
}

// OnFailedLogin increments the failure counter and, at the threshold, sets
// the lock deadline. The counter is not reset by the lock; only a successful
// sign-in clears it.
func (p LockPolicy) OnFailedLogin(a *domain.Account, now time.Time) {
	a.FailedLoginCount++
	if a.FailedLoginCount >= p.threshold() {
		until := now.Add(p.lockDuration())
		a.LockedUntil = &until
	}
}

// OnSuccessfulLogin resets the failure counter and clears any lock.
func (p LockPolicy) OnSuccessfulLogin(a *domain.Account) {
	a.FailedLoginCount = 0
	a.LockedUntil = nil
}

// IsLocked reports whether the account is currently locked. A lock lapses
// silently once its deadline passes; there is no explicit unlock.
func (p LockPolicy) IsLocked(a domain.Account, now time.Time) bool {
	return a.Locked(now)
}
