// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would run with, as YAML: built-in
defaults, then the config file, then flags. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, k, err := configLoader{}.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			out, err := RenderYAML(k)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
	registerConfigFlags(cmd.Flags())
	return cmd
}
