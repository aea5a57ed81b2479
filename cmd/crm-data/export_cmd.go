package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type exportCmdOptions struct {
	entity string
	format string
	output string
	view   viewFlags
}

func newExportCmd(flags *apiFlags) *cobra.Command {
	var opts exportCmdOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records matching a view into a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportCmd(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Source entity, e.g. contacts (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Export format: csv or xlsx (default: server default)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output file, or a directory for the server-chosen name")
	opts.view.register(cmd)
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runExportCmd(ctx context.Context, flags *apiFlags, opts exportCmdOptions) error {
	viewOpts, err := opts.view.listOptions()
	if err != nil {
		return err
	}
	client, err := flags.newClient()
	if err != nil {
		return err
	}

	file, err := client.Export(ctx, opts.entity, strings.TrimSpace(opts.format), viewOpts)
	if err != nil {
		return apiExit(err)
	}

	path, err := resolveExportPath(opts.output, file.Name, opts.entity)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return withCode(exitAPI, fmt.Errorf("write %s: %w", path, err))
	}

	type exportSummary struct {
		Status string `json:"status"`
		Entity string `json:"entity"`
		File   string `json:"file"`
		Bytes  int    `json:"bytes"`
	}
	return writeJSONLine(exportSummary{
		Status: "exported",
		Entity: opts.entity,
		File:   path,
		Bytes:  len(file.Data),
	})
}

// resolveExportPath picks where the export lands: an explicit file path
// wins, a directory takes the server-chosen name, and with no --output the
// server-chosen name lands in the working directory.
func resolveExportPath(output, serverName, entity string) (string, error) {
	name := strings.TrimSpace(serverName)
	if name == "" {
		name = entity + ".csv"
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return name, nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name), nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", withCode(exitAPI, fmt.Errorf("mkdir %s: %w", filepath.Dir(output), err))
	}
	return output, nil
}
