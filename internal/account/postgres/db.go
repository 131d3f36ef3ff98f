// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package postgres provides PostgreSQL implementations of the account
// repositories.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/beachbev/accountd/internal/account"
)

// DB is the subset of *pgxpool.Pool the repositories use. pgxmock pools
// satisfy it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewStore returns every account repository over one database handle.
func NewStore(db DB) account.Store {
	return account.Store{
		Accounts: NewAccountRepository(db),
		Devices:  NewDeviceTokenRepository(db),
		Resets:   NewResetTokenRepository(db),
		Emails:   NewEmailDirectory(db),
		Masters:  NewMasterDirectory(db),
	}
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgerrcode.ForeignKeyViolation
}
