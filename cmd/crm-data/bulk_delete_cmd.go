package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/crmclient"
)

type bulkDeleteOptions struct {
	entity    string
	ids       []string
	idsFile   string
	selectAll bool
	batchSize int
	yes       bool
	view      viewFlags
}

func newBulkDeleteCmd(flags *apiFlags) *cobra.Command {
	var opts bulkDeleteOptions

	cmd := &cobra.Command{
		Use:   "bulk-delete",
		Short: "Delete many records by id list or by view selection",
		Long: "Explicit ids are submitted in fixed-size batches; a rate-limited\n" +
			"batch halts the run with partial progress preserved, any other\n" +
			"failure fails only its batch. With --select-all the server expands\n" +
			"the current view instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkDeleteCmd(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Target entity, e.g. contacts (required)")
	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "Record ids to delete (repeatable or comma separated)")
	cmd.Flags().StringVar(&opts.idsFile, "ids-file", "", "File with one record id per line")
	cmd.Flags().BoolVar(&opts.selectAll, "select-all", false, "Delete every record the view flags match")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Ids per batch (default: BULK_BATCH_SIZE from the environment)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Actually delete; without it the command refuses to run")
	opts.view.register(cmd)
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runBulkDeleteCmd(ctx context.Context, flags *apiFlags, opts bulkDeleteOptions) error {
	if !opts.yes {
		return withCode(exitUsage, fmt.Errorf("refusing to delete without --yes"))
	}

	ids, err := collectIDs(opts.ids, opts.idsFile)
	if err != nil {
		return err
	}
	if opts.selectAll == (len(ids) > 0) {
		return withCode(exitUsage, fmt.Errorf("provide either --ids/--ids-file or --select-all"))
	}

	viewOpts, err := opts.view.listOptions()
	if err != nil {
		return err
	}
	client, err := flags.newClient()
	if err != nil {
		return err
	}

	var result *crmclient.BatchResult
	if opts.selectAll {
		result, err = client.Bulk(ctx, opts.entity, crmclient.BulkRequest{
			Kind:      crmclient.BulkDelete,
			SelectAll: true,
		}, viewOpts)
		if err != nil {
			return apiExit(err)
		}
	} else {
		size := opts.batchSize
		if size <= 0 {
			size = configuration.Use().CRM.BulkBatchSize
		}
		result = crmclient.RunBatches(ctx, ids, size, func(ctx context.Context, batch []string) (*crmclient.BatchResult, error) {
			return client.Bulk(ctx, opts.entity, crmclient.BulkRequest{
				Kind: crmclient.BulkDelete,
				IDs:  batch,
			}, crmclient.ListOptions{})
		})
	}

	if err := writeJSONLine(result); err != nil {
		return err
	}
	return runExit(result)
}

// collectIDs merges the flag and file sources, validating every id so a
// typo fails the whole run before anything is deleted.
func collectIDs(flagIDs []string, idsFile string) ([]string, error) {
	var ids []string
	for _, raw := range flagIDs {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	if strings.TrimSpace(idsFile) != "" {
		f, err := os.Open(idsFile)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read --ids-file: %w", err))
		}
		defer func() { _ = f.Close() }()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if trimmed := strings.TrimSpace(scanner.Text()); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read --ids-file: %w", err))
		}
	}

	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, withCode(exitValidation, fmt.Errorf("invalid record id %q", id))
		}
	}
	return ids, nil
}
