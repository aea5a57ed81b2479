package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/imports"
	"github.com/meridianhq/meridian-sdk/pkg/crmclient"
)

type importCmdOptions struct {
	entity   string
	file     string
	apply    bool
	assignee string
	mapping  string
}

func newImportCmd(flags *apiFlags) *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from a CSV or XLSX file",
		Long: "Uploads the file to the import API. Without --apply only the\n" +
			"server-side preview runs: the proposed column mapping, its issues\n" +
			"and a sample of transformed rows, nothing written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCmd(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Target entity, e.g. contacts (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the CSV or XLSX file (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write records (default is preview only)")
	cmd.Flags().StringVar(&opts.assignee, "assignee", "", "Default assignee applied to every imported record")
	cmd.Flags().StringVar(&opts.mapping, "mapping", "", "Column mapping as JSON, or @path to a JSON file")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImportCmd(ctx context.Context, flags *apiFlags, opts importCmdOptions) error {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", opts.file, err))
	}

	// Parse locally first so an unreadable file fails before any upload.
	table, err := imports.Parse(data)
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("parse %s: %w", opts.file, err))
	}
	if len(table.Rows) == 0 {
		return withCode(exitValidation, fmt.Errorf("%s has a header but no data rows", opts.file))
	}

	mapping, err := parseMappingArg(opts.mapping)
	if err != nil {
		return err
	}

	client, err := flags.newClient()
	if err != nil {
		return err
	}

	importOpts := crmclient.ImportOptions{
		DefaultAssignee: strings.TrimSpace(opts.assignee),
		Mapping:         mapping,
		TenantID:        strings.TrimSpace(flags.tenant),
	}
	filename := filepath.Base(opts.file)

	if !opts.apply {
		preview, err := client.PreviewImport(ctx, opts.entity, filename, bytes.NewReader(data), importOpts)
		if err != nil {
			return apiExit(err)
		}
		if err := writeJSONLine(preview); err != nil {
			return err
		}
		return previewExit(preview)
	}

	result, err := client.RunImport(ctx, opts.entity, filename, bytes.NewReader(data), importOpts)
	if err != nil {
		return apiExit(err)
	}
	if err := writeJSONLine(result); err != nil {
		return err
	}
	return runExit(result)
}

// previewExit makes a blocked preview visible to scripts: mapping issues or
// a file with no importable rows mean --apply would refuse the run.
func previewExit(preview *crmclient.ImportPreview) error {
	issues := preview.Issues
	if len(issues.Missing) > 0 || len(issues.Duplicated) > 0 || len(issues.Unknown) > 0 {
		return withCode(exitValidation, fmt.Errorf("mapping has issues (missing=%d duplicated=%d unknown=%d); adjust --mapping before --apply",
			len(issues.Missing), len(issues.Duplicated), len(issues.Unknown)))
	}
	if preview.ValidRows == 0 {
		return withCode(exitValidation, fmt.Errorf("no valid rows after transformation"))
	}
	return nil
}

func parseMappingArg(raw string) ([]crmclient.ColumnMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if path, found := strings.CutPrefix(raw, "@"); found {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read --mapping file: %w", err))
		}
		raw = string(b)
	}
	var mapping []crmclient.ColumnMapping
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&mapping); err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("invalid --mapping: %w", err))
	}
	return mapping, nil
}
