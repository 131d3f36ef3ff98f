// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"sync"
	"time"
)

// Default throttle settings.
const (
	DefaultLockoutThreshold = 7
	DefaultLockoutDuration  = 15 * time.Minute
)

// Throttle counts consecutive failed password logins per account and locks
// the account out once the threshold is reached. A streak of failures that
// goes quiet for the lockout duration is forgotten. State is process-local.
type Throttle struct {
	mu        sync.Mutex
	threshold int
	lockout   time.Duration
	now       func() time.Time
	entries   map[int64]*throttleEntry
	nextPrune time.Time
}

type throttleEntry struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// NewThrottle creates a Throttle. A threshold of zero or less disables it.
func NewThrottle(threshold int, lockout time.Duration) *Throttle {
	return &Throttle{
		threshold: threshold,
		lockout:   lockout,
		now:       time.Now,
		entries:   make(map[int64]*throttleEntry),
	}
}

// Locked reports whether the account is locked out and for how much longer.
func (t *Throttle) Locked(accountID int64) (time.Duration, bool) {
	if t == nil || t.threshold <= 0 {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.prune(now)
	e, ok := t.entries[accountID]
	if !ok || e.lockedUntil.IsZero() {
		return 0, false
	}
	remaining := e.lockedUntil.Sub(now)
	if remaining <= 0 {
		delete(t.entries, accountID)
		return 0, false
	}
	return remaining, true
}

// Fail records a failed attempt and reports whether it locked the account.
func (t *Throttle) Fail(accountID int64) bool {
	if t == nil || t.threshold <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.prune(now)
	e, ok := t.entries[accountID]
	if !ok || t.stale(e, now) {
		e = &throttleEntry{}
		t.entries[accountID] = e
	}
	e.failures++
	e.lastFailure = now
	if e.failures >= t.threshold {
		e.lockedUntil = now.Add(t.lockout)
		return true
	}
	return false
}

// Succeed clears the failure count of an account.
func (t *Throttle) Succeed(accountID int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, accountID)
}

// stale reports whether an entry no longer affects anything: its lockout, if
// any, is over and its last failure is older than the lockout duration.
func (t *Throttle) stale(e *throttleEntry, now time.Time) bool {
	return !now.Before(e.lockedUntil) && now.Sub(e.lastFailure) >= t.lockout
}

// prune drops stale entries, at most once per lockout duration. Callers hold
// t.mu.
func (t *Throttle) prune(now time.Time) {
	if now.Before(t.nextPrune) {
		return
	}
	for id, e := range t.entries {
		if t.stale(e, now) {
			delete(t.entries, id)
		}
	}
	t.nextPrune = now.Add(t.lockout)
}
