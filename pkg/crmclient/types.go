package crmclient

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Record is one CRM row as the API returns it.
type Record struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Entity    string         `json:"entity"`
	Fields    map[string]any `json:"fields"`
	Tags      []string       `json:"tags"`
	Assignee  string         `json:"assignee,omitempty"`
	AccountID *string        `json:"account_id,omitempty"`
	IsTest    bool           `json:"is_test,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// List is one page of records in canonical form. Servers answer list calls
// either with this envelope or with a bare JSON array; the client folds
// both into the envelope, so Items is never nil and Total is always set.
type List struct {
	Items  []Record         `json:"items"`
	Total  int              `json:"total"`
	Counts map[string]int64 `json:"counts"`
	Page   int              `json:"page"`
}

// Stats is the facet breakdown for a filtered view.
type Stats struct {
	Total  int64            `json:"total"`
	Counts map[string]int64 `json:"counts"`
}

// RecordInput creates a record. Fields keys must be declared by the
// entity's catalog definition.
type RecordInput struct {
	Fields   map[string]any `json:"fields"`
	Tags     []string       `json:"tags,omitempty"`
	Assignee string         `json:"assignee,omitempty"`
	IsTest   bool           `json:"is_test,omitempty"`
}

// RecordPatch is a partial update. Nil members leave their attribute
// untouched; Fields merges key-wise into the stored field set instead of
// replacing it.
type RecordPatch struct {
	Fields   map[string]any `json:"fields,omitempty"`
	Tags     *[]string      `json:"tags,omitempty"`
	Assignee *string        `json:"assignee,omitempty"`
	IsTest   *bool          `json:"is_test,omitempty"`
}

// Bulk operation kinds.
const (
	BulkDelete      = "delete"
	BulkFieldUpdate = "field_update"
	BulkReassign    = "reassign"
)

// BulkRequest selects records and names the operation to run over them.
// SelectAll expands server side to every record the caller's current view
// matches, so it composes with the same refinement parameters a list call
// takes.
type BulkRequest struct {
	Kind      string   `json:"kind"`
	IDs       []string `json:"ids,omitempty"`
	SelectAll bool     `json:"select_all,omitempty"`
	Field     string   `json:"field,omitempty"`
	Value     any      `json:"value,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
}

// ItemError locates one failure inside a batched run.
type ItemError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// BatchResult is the terminal outcome of a bulk or import run. Partial
// completion does not roll back. Halted means a rate limit stopped the run
// before every batch was attempted.
type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
	Linked    int         `json:"linked,omitempty"`
	Halted    bool        `json:"halted,omitempty"`
}

// ColumnMapping binds one upload column to a destination field, "skip", or
// the reserved account link.
type ColumnMapping struct {
	Header string `json:"header"`
	Field  string `json:"field"`
}

// MappingIssues are the problems that block an import run.
type MappingIssues struct {
	Missing    []string `json:"missing,omitempty"`
	Duplicated []string `json:"duplicated,omitempty"`
	Unknown    []string `json:"unknown,omitempty"`
}

// RowDiagnostic is a per-row note from the import preview.
type RowDiagnostic struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// PreviewRow is one transformed sample row.
type PreviewRow struct {
	Number    int            `json:"number"`
	Fields    map[string]any `json:"fields"`
	LinkValue string         `json:"link_value,omitempty"`
}

// ImportPreview is the server's dry-run response: the proposed column
// mapping, anything blocking a run, and a sample of the transformed rows.
type ImportPreview struct {
	Headers     []string            `json:"headers"`
	Mapping     []ColumnMapping     `json:"mapping"`
	Issues      MappingIssues       `json:"issues"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
	Diagnostics []RowDiagnostic     `json:"diagnostics,omitempty"`
	TotalRows   int                 `json:"total_rows"`
	ValidRows   int                 `json:"valid_rows"`
	Sample      []PreviewRow        `json:"sample,omitempty"`
}

// ImportOptions tune an upload. Mapping overrides the automatic header
// mapping; TenantID is honored for elevated callers only.
type ImportOptions struct {
	DefaultAssignee string
	Mapping         []ColumnMapping
	TenantID        string
}

// ExportFile is a rendered export: raw bytes plus the name and content type
// the server chose for them.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// AssistResult is the AI note produced for one record.
type AssistResult struct {
	Summary  string `json:"summary"`
	FitHint  string `json:"fit_hint,omitempty"`
	NextStep string `json:"next_step,omitempty"`
}

// ListOptions refine a list, stats, bulk or export call. The zero value
// asks for the server's default view: first page, no refinement.
type ListOptions struct {
	// Search matches indexed text fields.
	Search string
	// Facets filter select fields by name, e.g. {"status": "lead"}.
	Facets map[string]string
	// Tags keeps records carrying every listed tag.
	Tags []string
	// Age keeps records by creation bucket: 7d, 30d, 90d or older.
	Age string
	// Scope selects records by assignee: an employee name, or
	// "unassigned" for records nobody owns.
	Scope string
	// Sort is a field name, "-" prefixed for descending.
	Sort     string
	ShowTest bool
	Page     int
	Limit    int
	// Filter is a complete filter document in JSON. When set it seeds the
	// view before the parameters above refine it.
	Filter string
	// TenantID selects a tenant for this call only, overriding any client
	// level selection. Honored for elevated callers.
	TenantID string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Filter != "" {
		q.Set("filter", o.Filter)
	}
	if o.Search != "" {
		q.Set("q", o.Search)
	}
	for name, value := range o.Facets {
		q.Set(name, value)
	}
	if len(o.Tags) > 0 {
		q.Set("tags", strings.Join(o.Tags, ","))
	}
	if o.Age != "" {
		q.Set("age", o.Age)
	}
	if o.Scope != "" {
		q.Set("scope", o.Scope)
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.ShowTest {
		q.Set("show_test", "true")
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.TenantID != "" {
		q.Set("tenant_id", o.TenantID)
	}
	return q
}
