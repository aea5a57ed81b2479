package commands

import (
	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-sdk/modules"
)

// NewUtilityCommands creates the operational commands (migrate, seed) over
// the built-in module set. Embedders mount these on their own cobra root.
func NewUtilityCommands() []*cobra.Command {
	return []*cobra.Command{
		newMigrateCmd(),
		newSeedCmd(),
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded schema migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return Migrate(args[0], modules.BuiltInModules...)
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with the default tenant and a superadmin user",
		Long:  `Applies migrations, then creates the default tenant and a superadmin account from SEED_SUPERADMIN_EMAIL and SEED_SUPERADMIN_PASSWORD. Safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return SeedDatabase(modules.BuiltInModules...)
		},
	}
}
