// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Solver Space CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solverspace",
		Short: "Solver Space - authentication service",
		Long: `Solver Space runs the authentication service: a JSON API over
per-client auth sessions backed by a hosted auth provider and a
PostgreSQL profile store.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
