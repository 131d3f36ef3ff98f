// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LookupService answers name lookups for logged-in connections.
type LookupService struct {
	flow
	accounts AccountRepository
	masters  MasterDirectory
}

// NewLookupService creates a LookupService.
func NewLookupService(store Store, sessions SessionTracker, opts ...Option) (*LookupService, error) {
	if err := store.validate(); err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, oops.Errorf("session tracker is required")
	}
	return &LookupService{
		flow:     newFlow(store.Devices, sessions, opts),
		accounts: store.Accounts,
		masters:  store.Masters,
	}, nil
}

// LookupNameByIDPrivileged returns the name of any account, for connections
// logged in as a master. Every failure, including a missing privilege,
// yields NameError.
func (s *LookupService) LookupNameByIDPrivileged(ctx context.Context, connID ulid.ULID, accountID int64) (string, error) {
	caller, ok := s.sessions.AccountOf(connID)
	if !ok {
		return NameError, fail(CodeNotLoggedIn, MsgNotLoggedIn)
	}
	master, err := s.masters.IsMaster(ctx, caller)
	if err != nil {
		return NameError, oops.Code("MASTER_CHECK_FAILED").With("account_id", caller).Wrap(err)
	}
	if !master {
		return NameError, oops.Code(CodeNotPrivileged).
			With("account_id", caller).
			Errorf("not a master")
	}
	return s.name(ctx, accountID)
}

// LookupOwnName returns the name of the account connID is logged in as.
func (s *LookupService) LookupOwnName(ctx context.Context, connID ulid.ULID) (string, error) {
	caller, ok := s.sessions.AccountOf(connID)
	if !ok {
		return NameError, fail(CodeNotLoggedIn, MsgNotLoggedIn)
	}
	return s.name(ctx, caller)
}

func (s *LookupService) name(ctx context.Context, accountID int64) (string, error) {
	name, err := s.accounts.NameByID(ctx, accountID)
	if err != nil {
		return NameError, oops.Code("NAME_LOOKUP_FAILED").With("account_id", accountID).Wrap(err)
	}
	return name, nil
}
