package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"signup/internal/platform/postgres"
)

// migrator is the subset of postgres.Migrator the commands drive.
type migrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() error
}

// newMigrator is swapped in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return postgres.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage user store migrations",
		Long:  `Apply or inspect the embedded PostgreSQL migrations for the user store and audit log.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		RunE:  runMigrateVersion,
	})

	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	if version == 0 {
		cmd.Println("No migrations applied")
		return nil
	}
	if dirty {
		cmd.Printf("Version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("Version %d\n", version)
	return nil
}

func openMigrator(cmd *cobra.Command) (migrator, error) {
	dsn, err := databaseURL(cmd)
	if err != nil {
		return nil, err
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	return m, nil
}

func closeMigrator(cmd *cobra.Command, m migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("close migrator: %v\n", err)
	}
}

// databaseURL prefers --database-url over DATABASE_URL.
func databaseURL(cmd *cobra.Command) (string, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return url, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL or --database-url is required")
	}
	return cfg.Database.URL, nil
}
