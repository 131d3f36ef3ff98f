// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
)

// MasterDirectory implements account.MasterDirectory using PostgreSQL.
type MasterDirectory struct {
	db DB
}

var _ account.MasterDirectory = (*MasterDirectory)(nil)

// NewMasterDirectory creates a new MasterDirectory.
func NewMasterDirectory(db DB) *MasterDirectory {
	return &MasterDirectory{db: db}
}

// IsMaster reports whether an account holds the master privilege.
func (r *MasterDirectory) IsMaster(ctx context.Context, accountID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM masters WHERE account_id = $1)
	`, accountID).Scan(&ok)
	if err != nil {
		return false, oops.Code("MASTER_CHECK_FAILED").With("account_id", accountID).Wrap(err)
	}
	return ok, nil
}

// Grant gives an account the master privilege. Granting twice is a no-op.
func (r *MasterDirectory) Grant(ctx context.Context, accountID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO masters (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	if isForeignKeyViolation(err) {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", accountID).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return oops.Code("MASTER_GRANT_FAILED").With("account_id", accountID).Wrap(err)
	}
	return nil
}

// Revoke takes the master privilege away.
func (r *MasterDirectory) Revoke(ctx context.Context, accountID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM masters WHERE account_id = $1`, accountID)
	if err != nil {
		return oops.Code("MASTER_REVOKE_FAILED").With("account_id", accountID).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("MASTER_NOT_FOUND").With("account_id", accountID).Wrap(account.ErrNotFound)
	}
	return nil
}
