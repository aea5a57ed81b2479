package record

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// Filter is the backend-side constraint set for a record query. Everything
// finer grained (search, facets, tags, age buckets) is refined in memory by
// the query service, so equality of two Filters means equality of the fetched
// set.
type Filter struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Entity   string    `json:"entity"`
	Assignee *string   `json:"assignee,omitempty"`
	// Unassigned matches records whose assignee is NULL or empty.
	Unassigned  bool        `json:"unassigned,omitempty"`
	IncludeTest bool        `json:"include_test,omitempty"`
	IDs         []uuid.UUID `json:"ids,omitempty"`
}

type FindParams struct {
	Filter Filter
	// Limit bounds the fetched set; zero means the repository default.
	Limit int
}

// FacetCount is one GROUP BY bucket from the stats query.
type FacetCount struct {
	Value string
	Count int64
}

type Repository interface {
	Find(ctx context.Context, params *FindParams) ([]Record, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// CountByFacet groups the filtered set by the given field inside the
	// JSON document and returns per-value counts.
	CountByFacet(ctx context.Context, filter Filter, field string) ([]FacetCount, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (Record, error)
	// FindAccountIDByName resolves an account record by its name field
	// within a tenant, for contact-to-account linking.
	FindAccountIDByName(ctx context.Context, tenantID uuid.UUID, name string) (uuid.UUID, error)
	Create(ctx context.Context, rec Record) (Record, error)
	CreateMany(ctx context.Context, recs []Record) ([]Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
