// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/account/postgres"
	"github.com/beachbev/accountd/internal/store"
)

const masterTimeout = 30 * time.Second

// openMasters connects to the configured database and returns the master
// directory with a function that releases it. Replaced in tests.
var openMasters = func(ctx context.Context) (account.MasterDirectory, func(), error) {
	cfg, _, err := configLoader{}.Load(configFile, nil)
	if err != nil {
		return nil, nil, err
	}
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return postgres.NewMasterDirectory(pool), pool.Close, nil
}

// NewMasterCmd creates the master command group.
func NewMasterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Manage privileged accounts",
		Long: `Grant or revoke the master privilege. Masters may look up any
account's name and receive credentials for every resume folder.`,
	}
	cmd.AddCommand(
		newMasterActionCmd("grant", "Grant the master privilege", func(ctx context.Context, d account.MasterDirectory, id int64) (string, error) {
			if err := d.Grant(ctx, id); err != nil {
				return "", err
			}
			return "granted", nil
		}),
		newMasterActionCmd("revoke", "Revoke the master privilege", func(ctx context.Context, d account.MasterDirectory, id int64) (string, error) {
			if err := d.Revoke(ctx, id); err != nil {
				if errors.Is(err, account.ErrNotFound) {
					return "was not a master", nil
				}
				return "", err
			}
			return "revoked", nil
		}),
		newMasterActionCmd("check", "Report whether an account is a master", func(ctx context.Context, d account.MasterDirectory, id int64) (string, error) {
			ok, err := d.IsMaster(ctx, id)
			if err != nil {
				return "", err
			}
			if ok {
				return "is a master", nil
			}
			return "is not a master", nil
		}),
	)
	return cmd
}

type masterAction func(ctx context.Context, d account.MasterDirectory, accountID int64) (string, error)

func newMasterActionCmd(use, short string, action masterAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ACCOUNT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), masterTimeout)
			defer cancel()

			masters, release, err := openMasters(ctx)
			if err != nil {
				return err
			}
			defer release()

			result, err := action(ctx, masters, id)
			if err != nil {
				return oops.Code("MASTER_" + strings.ToUpper(use) + "_FAILED").With("account_id", id).Wrap(err)
			}
			cmd.Printf("account %d %s\n", id, result)
			return nil
		},
	}
}

func parseAccountID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.Code("INVALID_ACCOUNT_ID").With("input", s).Errorf("account id must be a positive integer")
	}
	return id, nil
}
