package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-sdk/pkg/commands"
)

func main() {
	root := &cobra.Command{
		Use:           "meridian",
		Short:         "Meridian platform operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(commands.NewUtilityCommands()...)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
