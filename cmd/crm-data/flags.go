package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/crmclient"
)

// apiFlags carry the connection settings shared by every subcommand.
type apiFlags struct {
	server string
	token  string
	tenant string
}

func (f *apiFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.server, "server", "", "API base URL (default: ORIGIN from the environment)")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "API bearer token (default: CRM_TOKEN from the environment)")
	cmd.PersistentFlags().StringVar(&f.tenant, "tenant", "", "Tenant UUID, for elevated callers acting on another tenant")
}

func (f *apiFlags) newClient() (*crmclient.Client, error) {
	server := strings.TrimSpace(f.server)
	if server == "" {
		server = configuration.Use().Origin
	}
	token := strings.TrimSpace(f.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("CRM_TOKEN"))
	}
	if token == "" {
		return nil, withCode(exitUsage, fmt.Errorf("--token or CRM_TOKEN is required"))
	}

	var opts []crmclient.Option
	if tenant := strings.TrimSpace(f.tenant); tenant != "" {
		if _, err := uuid.Parse(tenant); err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --tenant: %w", err))
		}
		opts = append(opts, crmclient.WithTenant(tenant))
	}

	client, err := crmclient.New(server, token, opts...)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --server: %w", err))
	}
	return client, nil
}

// viewFlags mirror the list refinement parameters for commands that operate
// on a filtered view.
type viewFlags struct {
	search   string
	facets   []string
	tags     []string
	age      string
	scope    string
	sort     string
	showTest bool
	filter   string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.search, "search", "", "Substring search across indexed fields")
	cmd.Flags().StringArrayVar(&f.facets, "facet", nil, "Facet filter as field=value (repeatable)")
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "Keep records carrying every listed tag")
	cmd.Flags().StringVar(&f.age, "age", "", "Age bucket: 7d, 30d, 90d or older")
	cmd.Flags().StringVar(&f.scope, "scope", "", "Assignee scope: an employee name, or \"unassigned\"")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort field, \"-\" prefixed for descending")
	cmd.Flags().BoolVar(&f.showTest, "show-test", false, "Include synthetic test records")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Complete filter document as JSON")
}

func (f *viewFlags) listOptions() (crmclient.ListOptions, error) {
	facets, err := parseFacetFlags(f.facets)
	if err != nil {
		return crmclient.ListOptions{}, err
	}
	return crmclient.ListOptions{
		Search:   strings.TrimSpace(f.search),
		Facets:   facets,
		Tags:     f.tags,
		Age:      strings.TrimSpace(f.age),
		Scope:    strings.TrimSpace(f.scope),
		Sort:     strings.TrimSpace(f.sort),
		ShowTest: f.showTest,
		Filter:   strings.TrimSpace(f.filter),
	}, nil
}

func parseFacetFlags(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	facets := make(map[string]string, len(raw))
	for _, pair := range raw {
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --facet %q, want field=value", pair))
		}
		facets[name] = strings.TrimSpace(value)
	}
	return facets, nil
}

// runExit converts a finished run into the command's outcome: rate-limit
// halts and partial failures are non-zero exits so scripts notice them.
func runExit(result *crmclient.BatchResult) error {
	if result.Halted {
		return withCode(exitHalted, fmt.Errorf("run halted by rate limiting after %d succeeded; re-run for the remainder", result.Succeeded))
	}
	if result.Failed > 0 {
		return withCode(exitPartial, fmt.Errorf("%d of %d items failed", result.Failed, result.Succeeded+result.Failed))
	}
	return nil
}

// apiExit maps a client error onto an exit code, keeping the typed message.
func apiExit(err error) error {
	if err == nil {
		return nil
	}
	if crmclient.IsRateLimited(err) {
		return withCode(exitHalted, err)
	}
	return withCode(exitAPI, err)
}
