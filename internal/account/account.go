// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits.
const (
	MaxNameLength  = 50
	MinEmailLength = 3
	MaxEmailLength = 254
)

// NewDevice asks PasswordLogin to allocate a device id. FirstDevice is the
// id every account starts with and the fallback when allocation fails.
// MaxDeviceID is the highest id a client may name or be given; the wire
// schemas carry the same bound.
const (
	NewDevice   int32 = 0
	FirstDevice int32 = 1
	MaxDeviceID int32 = 1 << 20
)

// DefaultTokenWindow is how long a device or reset token stays valid after
// it was issued.
const DefaultTokenWindow = 24 * time.Hour

// Credentials are the stored password hash and salt of an account. Both are
// nil until a password has been set.
type Credentials struct {
	Hash []byte
	Salt []byte
}

// DeviceToken is the digest of the bearer secret held by one device.
type DeviceToken struct {
	AccountID int64
	DeviceID  int32
	Digest    []byte
	IssuedAt  time.Time
}

// ResetToken is the digest of an outstanding password reset secret.
type ResetToken struct {
	AccountID int64
	Digest    []byte
	IssuedAt  time.Time
}

// EmailBinding holds an account's verified and unverified email addresses.
// Either may be empty.
type EmailBinding struct {
	AccountID  int64
	Verified   string
	Unverified string
}

// Verification is an outstanding email verification for an account.
type Verification struct {
	AccountID int64
	Email     string
	Digest    []byte
	IssuedAt  time.Time
}

// AccountRepository stores accounts and their passwords.
type AccountRepository interface {
	// Create inserts an account without a password and returns its id.
	// A taken name yields ErrDuplicate.
	Create(ctx context.Context, name string) (int64, error)

	// Delete removes an account and, by cascade, everything it owns.
	Delete(ctx context.Context, id int64) error

	// IDByName returns ErrNotFound when no account has that name.
	IDByName(ctx context.Context, name string) (int64, error)

	// NameByID returns ErrNotFound when no account has that id.
	NameByID(ctx context.Context, id int64) (string, error)

	// Credentials returns ErrNotFound when no account has that id.
	Credentials(ctx context.Context, id int64) (Credentials, error)

	// SetPassword replaces the password hash and salt and clears every device
	// token of the account, atomically.
	SetPassword(ctx context.Context, id int64, hash, salt []byte) error
}

// DeviceTokenRepository stores one token digest per (account, device).
type DeviceTokenRepository interface {
	// Get returns ErrNotFound when the device has no token.
	Get(ctx context.Context, accountID int64, deviceID int32) (*DeviceToken, error)

	// Put creates or overwrites the token of a device.
	Put(ctx context.Context, tok *DeviceToken) error

	// NextDeviceID returns one past the highest device id of the account, or
	// FirstDevice when it has none. It returns ErrDevicesExhausted when that
	// id does not fit in an int32.
	NextDeviceID(ctx context.Context, accountID int64) (int32, error)
}

// ResetTokenRepository stores at most one reset token per account.
type ResetTokenRepository interface {
	// Put creates or overwrites the reset token of an account.
	Put(ctx context.Context, tok *ResetToken) error

	// GetByDigest returns ErrNotFound when no token has that digest.
	GetByDigest(ctx context.Context, digest []byte) (*ResetToken, error)

	// Consume removes the token with digest and sets the account's new
	// password and clears its device tokens, all or nothing. check sees the
	// removed token first; an error from it aborts the whole change and is
	// returned as is. Consume returns ErrNotFound when no token has that
	// digest, so of several concurrent calls with one digest at most one
	// succeeds.
	Consume(ctx context.Context, digest []byte, check func(*ResetToken) error, hash, salt []byte) (*ResetToken, error)

	// DeleteIssuedBefore removes tokens issued before cutoff and returns how
	// many were removed.
	DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EmailDirectory stores email bindings and their verification state.
type EmailDirectory interface {
	// AccountByVerified returns ErrNotFound when no account has verified email.
	AccountByVerified(ctx context.Context, email string) (int64, error)

	// AccountByUnverified returns ErrNotFound when no account has email
	// pending verification.
	AccountByUnverified(ctx context.Context, email string) (int64, error)

	// Binding returns ErrNotFound when the account has no binding at all.
	Binding(ctx context.Context, accountID int64) (*EmailBinding, error)

	// BindUnverified sets the unverified email of an account together with
	// the digest of its verification secret.
	BindUnverified(ctx context.Context, v *Verification) error

	// VerificationByDigest returns ErrNotFound when no verification has that
	// digest.
	VerificationByDigest(ctx context.Context, digest []byte) (*Verification, error)

	// PromoteVerified makes the unverified email of an account its verified
	// one. An address already verified elsewhere yields ErrDuplicate.
	PromoteVerified(ctx context.Context, accountID int64) error
}

// MasterDirectory lists the accounts allowed to use privileged operations.
type MasterDirectory interface {
	IsMaster(ctx context.Context, accountID int64) (bool, error)
	Grant(ctx context.Context, accountID int64) error
	Revoke(ctx context.Context, accountID int64) error
}

// Store bundles the repositories the services read and write.
type Store struct {
	Accounts AccountRepository
	Devices  DeviceTokenRepository
	Resets   ResetTokenRepository
	Emails   EmailDirectory
	Masters  MasterDirectory
}

func (s Store) validate() error {
	switch {
	case s.Accounts == nil:
		return oops.Errorf("account repository is required")
	case s.Devices == nil:
		return oops.Errorf("device token repository is required")
	case s.Resets == nil:
		return oops.Errorf("reset token repository is required")
	case s.Emails == nil:
		return oops.Errorf("email directory is required")
	case s.Masters == nil:
		return oops.Errorf("master directory is required")
	}
	return nil
}

// SessionTracker records which account a connection is logged in as.
// core.SessionManager implements it.
type SessionTracker interface {
	Login(accountID int64, connID ulid.ULID)
	AccountOf(connID ulid.ULID) (int64, bool)
}

// Mailer sends emails asynchronously. Both methods return at once; done is
// called exactly once, later and on another goroutine, with the delivery
// outcome.
type Mailer interface {
	SendVerification(ctx context.Context, to, encodedToken string, done func(error))
	SendPasswordReset(ctx context.Context, to, encodedToken string, done func(error))
}

// PasswordHasher derives a password hash from a plaintext and a salt.
// token.Argon2id implements it.
type PasswordHasher interface {
	Hash(password string, salt []byte) []byte
}

func validateRegistration(name, email, password string) error {
	if name == "" || len(name) > MaxNameLength {
		return oops.Code(CodeValidationFailed).With("field", "name").Errorf("%s", MsgInvalidName)
	}
	if len(email) < MinEmailLength || len(email) > MaxEmailLength || !strings.Contains(email, "@") {
		return oops.Code(CodeValidationFailed).With("field", "email").Errorf("%s", MsgInvalidEmail)
	}
	if password == "" {
		return oops.Code(CodeValidationFailed).With("field", "password").Errorf("%s", MsgEmptyPassword)
	}
	return nil
}
