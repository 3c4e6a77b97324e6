package main

import (
	"github.com/spf13/cobra"

	"signup/internal/platform/config"
)

// loadConfig is swapped in tests for an explicit environment.
var loadConfig = config.Load

// NewRootCmd creates the root command for the signupctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signupctl",
		Short: "Administer the signup service",
		Long: `signupctl validates and prints the registration form the server would
build from the current environment, and applies user store migrations.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
