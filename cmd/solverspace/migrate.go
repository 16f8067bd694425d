// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/solverspace/solverspace/internal/config"
	"github.com/solverspace/solverspace/internal/store"
)

// migrator wraps the methods used from store.Migrator.
type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// newMigrator is swapped out in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations for the profile database.`,
	}

	cmd.PersistentFlags().String("db-url", "", "PostgreSQL URL (default: config file or DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE:  runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version and pending migrations",
		RunE:  runMigrateVersion,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	})

	return cmd
}

// resolveDatabaseURL picks the database URL: the --db-url flag, then the
// config file, then the DATABASE_URL environment variable.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	// The flag lives on the migrate parent; depending on how the
	// subcommand was invoked it shows up as local, persistent, or
	// inherited.
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags(), cmd.InheritedFlags()} {
		if f := fs.Lookup("db-url"); f != nil && f.Value.String() != "" {
			return f.Value.String(), nil
		}
	}

	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", err
		}
		if cfg.DB.URL != "" {
			return cfg.DB.URL, nil
		}
	}

	if envURL := os.Getenv("DATABASE_URL"); envURL != "" {
		return envURL, nil
	}

	return "", oops.Code("CONFIG_INVALID").Errorf("database URL is required: set --db-url, db.url in the config file, or DATABASE_URL")
}

func openMigrator(cmd *cobra.Command) (migrator, error) {
	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return nil, err
	}
	return newMigrator(databaseURL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	cmd.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	cmd.Println("Migrations applied")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	cmd.Println("Migrations rolled back")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	if version == 0 {
		cmd.Println("Schema version: none")
	} else {
		cmd.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
	}

	pending, err := m.Pending()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
	} else {
		cmd.Printf("Pending migrations: %d\n", len(pending))
	}
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	targetVersion, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}

	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	if err := m.Force(targetVersion); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	cmd.Printf("Schema version forced to %d\n", targetVersion)
	return nil
}

// parseForceVersion parses the version argument of migrate force.
func parseForceVersion(input string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(input, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", input).Wrap(err)
	}
	return version, nil
}
