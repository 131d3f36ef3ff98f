// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
)

// ResetTokenRepository implements account.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	db DB
}

var _ account.ResetTokenRepository = (*ResetTokenRepository)(nil)

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(db DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Put stores the reset token of an account, superseding any earlier one.
func (r *ResetTokenRepository) Put(ctx context.Context, tok *account.ResetToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reset_tokens (account_id, token_hash, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, issued_at = EXCLUDED.issued_at
	`, tok.AccountID, tok.Digest, tok.IssuedAt)
	if err != nil {
		return oops.Code("RESET_TOKEN_PUT_FAILED").
			With("operation", "upsert reset token").
			With("account_id", tok.AccountID).
			Wrap(err)
	}
	return nil
}

// GetByDigest retrieves a reset token by its digest.
func (r *ResetTokenRepository) GetByDigest(ctx context.Context, digest []byte) (*account.ResetToken, error) {
	tok := &account.ResetToken{Digest: digest}
	err := r.db.QueryRow(ctx, `
		SELECT account_id, issued_at FROM reset_tokens WHERE token_hash = $1
	`, digest).Scan(&tok.AccountID, &tok.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_GET_FAILED").Wrap(err)
	}
	return tok, nil
}

// Consume deletes the reset token with digest and, in the same transaction,
// replaces the account's password and clears its device tokens. The row lock
// taken by the delete makes concurrent consumers of one token wait; all but
// the first find no row.
func (r *ResetTokenRepository) Consume(
	ctx context.Context,
	digest []byte,
	check func(*account.ResetToken) error,
	hash, salt []byte,
) (*account.ResetToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_CONSUME_FAILED").With("operation", "begin transaction").Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op
	}()

	tok := &account.ResetToken{Digest: digest}
	err = tx.QueryRow(ctx, `
		DELETE FROM reset_tokens WHERE token_hash = $1 RETURNING account_id, issued_at
	`, digest).Scan(&tok.AccountID, &tok.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_CONSUME_FAILED").With("operation", "delete reset token").Wrap(err)
	}

	if check != nil {
		if err := check(tok); err != nil {
			return nil, err
		}
	}
	if err := setPassword(ctx, tx, tok.AccountID, hash, salt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("RESET_TOKEN_CONSUME_FAILED").
			With("operation", "commit transaction").
			With("account_id", tok.AccountID).
			Wrap(err)
	}
	return tok, nil
}

// DeleteIssuedBefore removes reset tokens issued before cutoff.
func (r *ResetTokenRepository) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM reset_tokens WHERE issued_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_SWEEP_FAILED").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}
