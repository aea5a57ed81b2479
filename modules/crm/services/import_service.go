package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/batch"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/imports"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

const suggestionLimit = 3

var errNoValidRows = serrors.NewError("NO_VALID_ROWS", "the file contains no importable rows")

// ImportOptions tune one import run.
type ImportOptions struct {
	// TenantID is an explicit tenant selection, honored for elevated
	// callers only.
	TenantID uuid.UUID
	// DefaultAssignee is applied to every imported record. Display names
	// resolve to the canonical assignee key.
	DefaultAssignee string
	// Mapping overrides the automatic header mapping when non-empty.
	Mapping imports.Mapping
}

// ImportPreview is everything the mapping step needs: the proposed mapping,
// its problems, ranked suggestions for unmatched headers, and a sample of
// the transformed rows. Suggestions are advisory; they never apply
// themselves.
type ImportPreview struct {
	Headers     []string              `json:"headers"`
	Mapping     imports.Mapping       `json:"mapping"`
	Issues      imports.MappingIssues `json:"issues"`
	Suggestions map[string][]string   `json:"suggestions,omitempty"`
	Diagnostics []imports.Diagnostic  `json:"diagnostics,omitempty"`
	TotalRows   int                   `json:"total_rows"`
	ValidRows   int                   `json:"valid_rows"`
	Sample      []imports.Row         `json:"sample,omitempty"`
}

// ImportService turns uploaded CSV/XLSX files into records: parse, map,
// transform, then batched writes. Preview covers the first three stages
// without touching the database.
type ImportService struct {
	repo      record.Repository
	catalog   *catalog.Catalog
	cache     *querycache.QueryCache
	resolver  scope.AssigneeResolver
	publisher eventbus.EventBus
	batchSize int
}

func NewImportService(
	repo record.Repository,
	cat *catalog.Catalog,
	cache *querycache.QueryCache,
	resolver scope.AssigneeResolver,
	publisher eventbus.EventBus,
	batchSize int,
) *ImportService {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &ImportService{
		repo:      repo,
		catalog:   cat,
		cache:     cache,
		resolver:  resolver,
		publisher: publisher,
		batchSize: batchSize,
	}
}

func (s *ImportService) Preview(ctx context.Context, entityName string, data []byte, opts ImportOptions) (*ImportPreview, error) {
	if err := authorizeImports(ctx, "preview"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	table, err := imports.Parse(data)
	if err != nil {
		return nil, err
	}

	mapping := opts.Mapping
	if len(mapping) == 0 {
		mapping = imports.AutoMap(ent, table.Headers)
	}

	rows, diagnostics := imports.Transform(ent, table, mapping)
	valid := make([]imports.Row, 0, len(rows))
	for _, row := range rows {
		if missing := missingRequired(ent, row); len(missing) > 0 {
			diagnostics = append(diagnostics, imports.Diagnostic{
				Row:     row.Number,
				Message: "missing required value: " + strings.Join(missing, ", "),
			})
			continue
		}
		valid = append(valid, row)
	}

	sample := valid
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return &ImportPreview{
		Headers:     table.Headers,
		Mapping:     mapping,
		Issues:      mapping.Issues(ent),
		Suggestions: suggestForSkipped(ent, mapping),
		Diagnostics: diagnostics,
		TotalRows:   len(table.Rows),
		ValidRows:   len(valid),
		Sample:      sample,
	}, nil
}

// Run imports the file. The mapping must be clean and at least one row must
// survive transform, otherwise the run is rejected before any write. Batches
// are written sequentially and atomically; a rate-limit error halts the
// remainder while a transient batch failure is recorded and skipped over.
func (s *ImportService) Run(ctx context.Context, entityName string, data []byte, opts ImportOptions) (*batch.Result, error) {
	if err := authorizeImports(ctx, "run"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	tenantID, err := ResolveTenant(ctx, opts.TenantID)
	if err != nil {
		return nil, err
	}

	table, err := imports.Parse(data)
	if err != nil {
		return nil, err
	}
	mapping := opts.Mapping
	if len(mapping) == 0 {
		mapping = imports.AutoMap(ent, table.Headers)
	}
	if issues := mapping.Issues(ent); !issues.OK() {
		return nil, invalidMappingError(issues)
	}

	rows, _ := imports.Transform(ent, table, mapping)
	result := &batch.Result{}
	valid := make([]imports.Row, 0, len(rows))
	for _, row := range rows {
		if missing := missingRequired(ent, row); len(missing) > 0 {
			result.AddFailure(
				fmt.Sprintf("row %d", row.Number),
				"missing required value: "+strings.Join(missing, ", "),
			)
			continue
		}
		valid = append(valid, row)
	}
	if len(valid) == 0 {
		return nil, errNoValidRows
	}

	assignee := resolveAssigneeValue(ctx, s.resolver, tenantID, opts.DefaultAssignee)
	tenantCtx := composables.WithTenantID(composables.WithoutTx(ctx), tenantID)

	for i, group := range batch.Partition(valid, s.batchSize) {
		linked, err := s.runImportBatch(tenantCtx, ent, tenantID, assignee, group)
		if err != nil {
			result.Failed += len(group)
			result.Errors = append(result.Errors, batch.ItemError{
				Label:   fmt.Sprintf("batch %d", i+1),
				Message: err.Error(),
			})
			if batch.IsRateLimited(err) {
				result.Halted = true
				break
			}
			continue
		}
		result.AddSuccess(len(group))
		result.Linked += linked
	}

	if result.Succeeded > 0 {
		s.cache.InvalidateEntity(entityName)
		s.publisher.Publish(&record.ImportedEvent{
			TenantID:  tenantID,
			Entity:    entityName,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
			Linked:    result.Linked,
		})
	}
	return result, nil
}

// runImportBatch writes one batch in a single transaction. Contacts resolve
// their account link by name inside the same transaction; an unmatched name
// simply leaves the contact unlinked.
func (s *ImportService) runImportBatch(ctx context.Context, ent catalog.Entity, tenantID uuid.UUID, assignee string, rows []imports.Row) (int, error) {
	linked := 0
	err := runInTenantTx(ctx, func(txCtx context.Context) error {
		recs := make([]record.Record, 0, len(rows))
		for _, row := range rows {
			opts := []record.Option{record.WithIsTest(false)}
			if assignee != "" {
				opts = append(opts, record.WithAssignee(assignee))
			}
			if ent.HasLinking() && row.LinkValue != "" {
				accountID, err := s.repo.FindAccountIDByName(txCtx, tenantID, row.LinkValue)
				switch {
				case err == nil:
					opts = append(opts, record.WithAccountID(&accountID))
					linked++
				case !errors.Is(err, record.ErrNotFound):
					return err
				}
			}
			recs = append(recs, record.New(tenantID, ent.Name, row.Fields, opts...))
		}
		_, err := s.repo.CreateMany(txCtx, recs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return linked, nil
}

// missingRequired lists required fields a transformed row carries no value
// for.
func missingRequired(ent catalog.Entity, row imports.Row) []string {
	var missing []string
	for _, name := range ent.RequiredFields() {
		if _, ok := row.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func suggestForSkipped(ent catalog.Entity, mapping imports.Mapping) map[string][]string {
	out := map[string][]string{}
	for _, col := range mapping {
		if col.Field != imports.Skip {
			continue
		}
		if hints := imports.Suggest(ent, col.Header, suggestionLimit); len(hints) > 0 {
			out[col.Header] = hints
		}
	}
	return out
}

func invalidMappingError(issues imports.MappingIssues) error {
	var parts []string
	if len(issues.Missing) > 0 {
		parts = append(parts, "required fields unmapped: "+strings.Join(issues.Missing, ", "))
	}
	if len(issues.Duplicated) > 0 {
		parts = append(parts, "fields mapped more than once: "+strings.Join(issues.Duplicated, ", "))
	}
	if len(issues.Unknown) > 0 {
		parts = append(parts, "unknown destinations: "+strings.Join(issues.Unknown, ", "))
	}
	return serrors.NewError("INVALID_MAPPING", strings.Join(parts, "; "))
}
