// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package core

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SessionManager maps logged-in accounts to the connection that logged them in.
//
// Each account has at most one connection. The most recent Login for an
// account wins; there is no single-session enforcement beyond that. The map
// holds connection ids only and never owns the connections themselves.
type SessionManager struct {
	mu        sync.RWMutex
	byAccount map[int64]ulid.ULID
	byConn    map[ulid.ULID]int64
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		byAccount: make(map[int64]ulid.ULID),
		byConn:    make(map[ulid.ULID]int64),
	}
}

// Login attributes connID to accountID. A connection that was logged in as a
// different account is detached from it first, and a previous connection of
// accountID loses its attribution.
func (sm *SessionManager) Login(accountID int64, connID ulid.ULID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if prevAccount, ok := sm.byConn[connID]; ok && prevAccount != accountID {
		if sm.byAccount[prevAccount] == connID {
			delete(sm.byAccount, prevAccount)
		}
	}
	if prevConn, ok := sm.byAccount[accountID]; ok && prevConn != connID {
		delete(sm.byConn, prevConn)
		slog.Debug("account login replaced previous connection",
			"account_id", accountID,
			"previous_conn_id", prevConn.String(),
			"conn_id", connID.String(),
		)
	}

	sm.byAccount[accountID] = connID
	sm.byConn[connID] = accountID
}

// Disconnect drops whatever attribution connID holds. The account mapping is
// removed only while it still points at connID, so a stale connection closing
// never logs out a newer one. It reports the account the connection was
// logged in as, if any.
func (sm *SessionManager) Disconnect(connID ulid.ULID) (int64, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	accountID, ok := sm.byConn[connID]
	if !ok {
		return 0, false
	}
	delete(sm.byConn, connID)
	if sm.byAccount[accountID] == connID {
		delete(sm.byAccount, accountID)
	}
	return accountID, true
}

// AccountOf returns the account connID is logged in as.
func (sm *SessionManager) AccountOf(connID ulid.ULID) (int64, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	accountID, ok := sm.byConn[connID]
	return accountID, ok
}

// ConnectionOf returns the connection accountID is logged in on.
func (sm *SessionManager) ConnectionOf(accountID int64) (ulid.ULID, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	connID, ok := sm.byAccount[accountID]
	return connID, ok
}

// LoggedIn returns the number of logged-in accounts.
func (sm *SessionManager) LoggedIn() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.byAccount)
}
