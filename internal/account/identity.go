// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Resolver maps a user-supplied handle, a name or an email address, to an
// account id.
type Resolver struct {
	accounts AccountRepository
	emails   EmailDirectory
}

// NewResolver creates a Resolver.
func NewResolver(accounts AccountRepository, emails EmailDirectory) (*Resolver, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if emails == nil {
		return nil, oops.Errorf("email directory is required")
	}
	return &Resolver{accounts: accounts, emails: emails}, nil
}

// Resolve returns the account handle names, or 0 when nothing matches.
//
// Names win over verified emails, which win over unverified ones. An
// unverified email only resolves while its account has no different
// verified email.
func (r *Resolver) Resolve(ctx context.Context, handle string) (int64, error) {
	id, err := r.accounts.IDByName(ctx, handle)
	if found, err := hit(err, "name"); found || err != nil {
		return id, err
	}

	id, err = r.emails.AccountByVerified(ctx, handle)
	if found, err := hit(err, "verified_email"); found || err != nil {
		return id, err
	}

	return r.unverified(ctx, handle)
}

// unverified resolves an unverified email that no verified email superseded.
func (r *Resolver) unverified(ctx context.Context, email string) (int64, error) {
	id, err := r.emails.AccountByUnverified(ctx, email)
	if found, err := hit(err, "unverified_email"); !found || err != nil {
		return 0, err
	}

	binding, err := r.emails.Binding(ctx, id)
	if found, err := hit(err, "binding"); err != nil {
		return 0, err
	} else if found && binding.Verified != "" && binding.Verified != email {
		return 0, nil
	}
	return id, nil
}

// CheckAvailable reports whether a registration may use name and email. The
// checks run in a fixed order and the first collision decides the error.
func (r *Resolver) CheckAvailable(ctx context.Context, name, email string) error {
	_, err := r.accounts.IDByName(ctx, name)
	if found, err := hit(err, "name"); err != nil {
		return err
	} else if found {
		return oops.Code(CodeNameTaken).With("name", name).Errorf("%s", MsgNameTaken)
	}

	used, err := r.emailInUse(ctx, name)
	if err != nil {
		return err
	}
	if used {
		return oops.Code(CodeNameIsEmail).With("name", name).Errorf("%s", MsgNameIsEmail)
	}

	used, err = r.emailInUse(ctx, email)
	if err != nil {
		return err
	}
	if used {
		return oops.Code(CodeEmailTaken).Errorf("%s", MsgEmailTaken)
	}
	return nil
}

func (r *Resolver) emailInUse(ctx context.Context, email string) (bool, error) {
	_, err := r.emails.AccountByVerified(ctx, email)
	if found, err := hit(err, "verified_email"); found || err != nil {
		return found, err
	}
	_, err = r.emails.AccountByUnverified(ctx, email)
	return hit(err, "unverified_email")
}

// ResolveResetEmail finds the account a password reset may be sent for.
// An unverified match only counts when its account has no verified email at
// all; otherwise the caller has to use the verified one.
func (r *Resolver) ResolveResetEmail(ctx context.Context, email string) (int64, error) {
	id, err := r.emails.AccountByUnverified(ctx, email)
	found, err := hit(err, "unverified_email")
	if err != nil {
		return 0, err
	}
	if found {
		binding, err := r.emails.Binding(ctx, id)
		bound, err := hit(err, "binding")
		if err != nil {
			return 0, err
		}
		if bound && binding.Verified != "" {
			return 0, oops.Code(CodeEmailNotVerified).With("account_id", id).Errorf("%s", MsgMustUseVerified)
		}
		return id, nil
	}

	id, err = r.emails.AccountByVerified(ctx, email)
	if found, err := hit(err, "verified_email"); err != nil {
		return 0, err
	} else if found {
		return id, nil
	}
	return 0, oops.Code(CodeEmailNotFound).Errorf("%s", MsgEmailNotFound)
}

// hit turns a repository lookup error into found/not-found, keeping real
// failures as errors.
func hit(err error, step string) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, oops.Code(CodeIdentityLookup).With("step", step).Wrap(err)
	}
}
