// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
)

// EmailDirectory implements account.EmailDirectory using PostgreSQL.
type EmailDirectory struct {
	db DB
}

var _ account.EmailDirectory = (*EmailDirectory)(nil)

// NewEmailDirectory creates a new EmailDirectory.
func NewEmailDirectory(db DB) *EmailDirectory {
	return &EmailDirectory{db: db}
}

// AccountByVerified returns the account whose verified email is email.
func (r *EmailDirectory) AccountByVerified(ctx context.Context, email string) (int64, error) {
	return r.accountBy(ctx, `
		SELECT account_id FROM email_bindings WHERE verified_email = $1
	`, email)
}

// AccountByUnverified returns the account with email pending verification.
// Should more than one hold it, the oldest account wins.
func (r *EmailDirectory) AccountByUnverified(ctx context.Context, email string) (int64, error) {
	return r.accountBy(ctx, `
		SELECT account_id FROM email_bindings
		WHERE unverified_email = $1
		ORDER BY account_id
		LIMIT 1
	`, email)
}

func (r *EmailDirectory) accountBy(ctx context.Context, query, email string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, query, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, account.ErrNotFound
	}
	if err != nil {
		return 0, oops.Code("EMAIL_LOOKUP_FAILED").Wrap(err)
	}
	return id, nil
}

// Binding returns both email addresses of an account.
func (r *EmailDirectory) Binding(ctx context.Context, accountID int64) (*account.EmailBinding, error) {
	b := &account.EmailBinding{AccountID: accountID}
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(verified_email, ''), COALESCE(unverified_email, '')
		FROM email_bindings
		WHERE account_id = $1
	`, accountID).Scan(&b.Verified, &b.Unverified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("BINDING_GET_FAILED").With("account_id", accountID).Wrap(err)
	}
	return b, nil
}

// BindUnverified sets the unverified email of an account and the digest of
// its verification secret. A verified email already bound is kept.
func (r *EmailDirectory) BindUnverified(ctx context.Context, v *account.Verification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_bindings (account_id, unverified_email, verify_hash, verify_issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id)
		DO UPDATE SET unverified_email = EXCLUDED.unverified_email,
		              verify_hash = EXCLUDED.verify_hash,
		              verify_issued_at = EXCLUDED.verify_issued_at
	`, v.AccountID, v.Email, v.Digest, v.IssuedAt)
	if err != nil {
		return oops.Code("BINDING_PUT_FAILED").
			With("operation", "upsert email binding").
			With("account_id", v.AccountID).
			Wrap(err)
	}
	return nil
}

// VerificationByDigest returns the outstanding verification with digest.
func (r *EmailDirectory) VerificationByDigest(ctx context.Context, digest []byte) (*account.Verification, error) {
	v := &account.Verification{Digest: digest}
	err := r.db.QueryRow(ctx, `
		SELECT account_id, unverified_email, verify_issued_at
		FROM email_bindings
		WHERE verify_hash = $1 AND unverified_email IS NOT NULL
	`, digest).Scan(&v.AccountID, &v.Email, &v.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_GET_FAILED").Wrap(err)
	}
	return v, nil
}

// PromoteVerified moves the unverified email of an account into the
// verified slot and forgets the verification secret.
func (r *EmailDirectory) PromoteVerified(ctx context.Context, accountID int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE email_bindings
		SET verified_email = unverified_email,
		    unverified_email = NULL,
		    verify_hash = NULL,
		    verify_issued_at = NULL
		WHERE account_id = $1 AND unverified_email IS NOT NULL
	`, accountID)
	if isUniqueViolation(err) {
		return oops.Code("VERIFICATION_PROMOTE_FAILED").
			With("account_id", accountID).
			Wrap(account.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("VERIFICATION_PROMOTE_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("BINDING_NOT_FOUND").With("account_id", accountID).Wrap(account.ErrNotFound)
	}
	return nil
}
