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

// AccountRepository implements account.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

var _ account.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account with no password. Ids come from an identity
// column and are never handed out twice.
func (r *AccountRepository) Create(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (name) VALUES ($1) RETURNING id
	`, name).Scan(&id)
	if isUniqueViolation(err) {
		return 0, oops.Code("ACCOUNT_CREATE_FAILED").
			With("name", name).
			Wrap(account.ErrDuplicate)
	}
	if err != nil {
		return 0, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("name", name).
			Wrap(err)
	}
	return id, nil
}

// Delete removes an account. Device tokens, reset tokens, email bindings and
// master grants go with it by cascade.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("account_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(account.ErrNotFound)
	}
	return nil
}

// IDByName returns the id of the account with the given name.
func (r *AccountRepository) IDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM accounts WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, account.ErrNotFound
	}
	if err != nil {
		return 0, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "select id by name").
			Wrap(err)
	}
	return id, nil
}

// NameByID returns the name of an account.
func (r *AccountRepository) NameByID(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM accounts WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "select name by id").
			With("account_id", id).
			Wrap(err)
	}
	return name, nil
}

// Credentials returns the password hash and salt of an account.
func (r *AccountRepository) Credentials(ctx context.Context, id int64) (account.Credentials, error) {
	var creds account.Credentials
	err := r.db.QueryRow(ctx, `
		SELECT password_hash, password_salt FROM accounts WHERE id = $1
	`, id).Scan(&creds.Hash, &creds.Salt)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Credentials{}, oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return account.Credentials{}, oops.Code("CREDENTIALS_GET_FAILED").
			With("operation", "select credentials").
			With("account_id", id).
			Wrap(err)
	}
	return creds, nil
}

// SetPassword stores a new hash and salt and clears every device token of
// the account in one transaction.
func (r *AccountRepository) SetPassword(ctx context.Context, id int64, hash, salt []byte) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("PASSWORD_SET_FAILED").With("operation", "begin transaction").Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := setPassword(ctx, tx, id, hash, salt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("PASSWORD_SET_FAILED").
			With("operation", "commit transaction").
			With("account_id", id).
			Wrap(err)
	}
	return nil
}

// setPassword replaces the credentials of an account and clears its device
// tokens inside tx.
func setPassword(ctx context.Context, tx pgx.Tx, id int64, hash, salt []byte) error {
	result, err := tx.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, password_salt = $3 WHERE id = $1
	`, id, hash, salt)
	if err != nil {
		return oops.Code("PASSWORD_SET_FAILED").
			With("operation", "update password").
			With("account_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(account.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM device_tokens WHERE account_id = $1`, id); err != nil {
		return oops.Code("PASSWORD_SET_FAILED").
			With("operation", "clear device tokens").
			With("account_id", id).
			Wrap(err)
	}
	return nil
}
