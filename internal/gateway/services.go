// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package gateway

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/resume"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, connID ulid.ULID, name, email, password string) (*account.Issued, error)
}

// SessionIssuer logs connections in.
type SessionIssuer interface {
	Renew(ctx context.Context, connID ulid.ULID, accountID int64, deviceID int32, encoded string) (account.Issued, error)
	PasswordLogin(ctx context.Context, connID ulid.ULID, handle, password string, deviceID int32) (account.Issued, error)
}

// Resetter runs password resets.
type Resetter interface {
	RequestReset(ctx context.Context, connID ulid.ULID, email string) (*account.Ack, error)
	CheckReset(ctx context.Context, encoded string) (account.Ack, error)
	ConsumeReset(ctx context.Context, connID ulid.ULID, encoded, password string) (account.Issued, error)
}

// EmailManager verifies and reports email addresses.
type EmailManager interface {
	VerifyEmail(ctx context.Context, encoded string) (account.Ack, error)
	ResendVerification(ctx context.Context, connID ulid.ULID) (*account.Ack, error)
	EmailSettings(ctx context.Context, connID ulid.ULID) (account.EmailBinding, error)
}

// NameLookup resolves account names.
type NameLookup interface {
	LookupNameByIDPrivileged(ctx context.Context, connID ulid.ULID, accountID int64) (string, error)
	LookupOwnName(ctx context.Context, connID ulid.ULID) (string, error)
}

// ResumeGranter hands out resume storage credentials.
type ResumeGranter interface {
	RequestAccess(ctx context.Context, connID ulid.ULID) (*resume.Access, error)
	RequestMasterAccess(ctx context.Context, connID ulid.ULID) (*resume.Access, error)
	HasResume(ctx context.Context, connID ulid.ULID) (*bool, error)
}

// Services are what the gateway dispatches frames to.
type Services struct {
	Registration Registrar
	Sessions     SessionIssuer
	Resets       Resetter
	Emails       EmailManager
	Lookups      NameLookup
	Resume       ResumeGranter
}

func (s Services) validate() error {
	switch {
	case s.Registration == nil:
		return oops.Errorf("registration service is required")
	case s.Sessions == nil:
		return oops.Errorf("session service is required")
	case s.Resets == nil:
		return oops.Errorf("reset service is required")
	case s.Emails == nil:
		return oops.Errorf("email service is required")
	case s.Lookups == nil:
		return oops.Errorf("lookup service is required")
	case s.Resume == nil:
		return oops.Errorf("resume service is required")
	}
	return nil
}
