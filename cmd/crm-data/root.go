package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &apiFlags{}

	cmd := &cobra.Command{
		Use:           "crm-data",
		Short:         "CRM records import/export/bulk tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(newImportCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newBulkDeleteCmd(flags))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
