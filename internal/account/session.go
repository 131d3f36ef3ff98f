// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"bytes"
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/token"
)

// dummySalt is hashed against when a handle resolves to nothing, so a miss
// costs as much as a wrong password.
var dummySalt = bytes.Repeat([]byte{0xA5}, token.SaltSize)

// SessionService logs connections in by device token or by password.
type SessionService struct {
	flow
	accounts AccountRepository
	resolver *Resolver
}

// NewSessionService creates a SessionService.
func NewSessionService(store Store, sessions SessionTracker, opts ...Option) (*SessionService, error) {
	if err := store.validate(); err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, oops.Errorf("session tracker is required")
	}
	resolver, err := NewResolver(store.Accounts, store.Emails)
	if err != nil {
		return nil, err
	}
	return &SessionService{
		flow:     newFlow(store.Devices, sessions, opts),
		accounts: store.Accounts,
		resolver: resolver,
	}, nil
}

// Renew logs connID in with the token held by a device and rotates it. The
// token must match the stored digest and be inside the validity window.
func (s *SessionService) Renew(ctx context.Context, connID ulid.ULID, accountID int64, deviceID int32, encoded string) (Issued, error) {
	stored, err := s.devices.Get(ctx, accountID, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return issuedFailure(MsgNoToken), oops.Code(CodeTokenMissing).
				With("account_id", accountID).
				With("device_id", deviceID).
				Errorf("no token for device")
		}
		return issuedFailure(MsgNoToken), oops.Code("DEVICE_TOKEN_GET_FAILED").
			With("account_id", accountID).
			With("device_id", deviceID).
			Wrap(err)
	}

	if s.expired(stored.IssuedAt) {
		return issuedFailure(MsgTokenExpired), oops.Code(CodeTokenExpired).
			With("account_id", accountID).
			With("device_id", deviceID).
			With("issued_at", stored.IssuedAt).
			Errorf("device token expired")
	}

	// A malformed token is reported exactly like a wrong one.
	digest, err := token.DigestEncoded(encoded)
	if err != nil || !token.Equal(digest, stored.Digest) {
		return issuedFailure(MsgTokenMismatch), failWith(CodeTokenMismatch, MsgTokenMismatch, err)
	}

	return s.grant(ctx, connID, accountID, deviceID, MsgLoginSuccessful)
}

// PasswordLogin logs connID in with a name or email and a password. A
// deviceID of NewDevice allocates a fresh device for the account.
func (s *SessionService) PasswordLogin(ctx context.Context, connID ulid.ULID, handle, password string, deviceID int32) (Issued, error) {
	if deviceID < NewDevice || deviceID > MaxDeviceID {
		return issuedFailure(MsgInvalidDevice), oops.Code(CodeValidationFailed).
			With("device_id", deviceID).
			Errorf("%s", MsgInvalidDevice)
	}

	accountID, err := s.resolver.Resolve(ctx, handle)
	if err != nil {
		return issuedFailure(MsgInvalidLogin), err
	}
	if accountID == 0 {
		s.hasher.Hash(password, dummySalt)
		return issuedFailure(MsgInvalidLogin), oops.Code(CodeInvalidLogin).Errorf("handle not found")
	}

	// A locked account answers like a wrong password and costs as much, so
	// lockouts do not reveal which handles exist.
	if remaining, locked := s.throttle.Locked(accountID); locked {
		s.hasher.Hash(password, dummySalt)
		s.metrics.LoginThrottled()
		return issuedFailure(MsgInvalidLogin), oops.Code(CodeLoginThrottled).
			With("account_id", accountID).
			With("remaining", remaining.String()).
			Errorf("account locked out")
	}

	creds, err := s.accounts.Credentials(ctx, accountID)
	if err != nil {
		return issuedFailure(MsgNoPasswordData), oops.Code("CREDENTIALS_GET_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	if creds.Hash == nil || creds.Salt == nil {
		s.hasher.Hash(password, dummySalt)
		return issuedFailure(MsgInvalidLogin), oops.Code(CodeInvalidLogin).
			With("account_id", accountID).
			Errorf("account has no password")
	}

	if !token.Equal(s.hasher.Hash(password, creds.Salt), creds.Hash) {
		if s.throttle.Fail(accountID) {
			s.logger.WarnContext(ctx, "account locked out after failed logins", "account_id", accountID)
		}
		return issuedFailure(MsgInvalidLogin), oops.Code(CodeInvalidLogin).
			With("account_id", accountID).
			Errorf("password mismatch")
	}
	s.throttle.Succeed(accountID)

	if deviceID == NewDevice {
		if deviceID, err = s.allocateDevice(ctx, accountID); err != nil {
			return issuedFailure(MsgNoToken), err
		}
	}
	return s.grant(ctx, connID, accountID, deviceID, MsgLoginSuccessful)
}
