package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/services"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
)

// listFilterQuery is the JSON alternative to the flat list parameters. The
// same view can be expressed either way; flat parameters win where both
// appear.
type listFilterQuery struct {
	Search   string            `json:"search,omitempty"`
	Facets   map[string]string `json:"facets,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Age      string            `json:"age,omitempty"`
	Scope    string            `json:"scope,omitempty"`
	ShowTest bool              `json:"show_test,omitempty"`
	TenantID string            `json:"tenant_id,omitempty"`
	Sort     string            `json:"sort,omitempty"`
	Page     int               `json:"page,omitempty"`
	Limit    int               `json:"limit,omitempty"`
}

// parseViewOptions assembles a record view from the request: the filter JSON
// object first, then the flat parameters on top. Facet parameters use the
// entity's select field names directly, so ?status=lead narrows contacts.
func parseViewOptions(r *http.Request, ent catalog.Entity) (services.ViewOptions, error) {
	var opts services.ViewOptions

	if raw := composables.GetLastQueryParam(r, "filter"); raw != "" {
		var fq listFilterQuery
		if err := json.Unmarshal([]byte(raw), &fq); err != nil {
			return opts, errors.Wrap(err, "invalid filter parameter")
		}
		opts.Refinement.Search = fq.Search
		opts.Refinement.Facets = fq.Facets
		opts.Refinement.Tags = fq.Tags
		if fq.Age != "" {
			bucket, err := record.ParseAgeBucket(fq.Age)
			if err != nil {
				return opts, err
			}
			opts.Refinement.Age = bucket
		}
		opts.EmployeeScope = fq.Scope
		opts.ShowTestData = fq.ShowTest
		if fq.TenantID != "" {
			id, err := uuid.Parse(fq.TenantID)
			if err != nil {
				return opts, errors.Wrap(err, "invalid tenant_id in filter")
			}
			opts.TenantID = id
		}
		opts.Sort = record.ParseSort(fq.Sort)
		opts.Page = fq.Page
		opts.PageSize = fq.Limit
	}

	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("q")); raw != "" {
		opts.Refinement.Search = raw
	}
	for _, name := range ent.FieldNames() {
		field, ok := ent.Field(name)
		if !ok || field.Kind != catalog.KindSelect {
			continue
		}
		raw := strings.TrimSpace(composables.GetLastQueryParam(r, name))
		if raw == "" {
			continue
		}
		if opts.Refinement.Facets == nil {
			opts.Refinement.Facets = make(map[string]string)
		}
		opts.Refinement.Facets[name] = raw
	}
	if tags := parseTagsParam(query["tags"]); tags != nil {
		opts.Refinement.Tags = tags
	}
	if raw := composables.GetLastQueryParam(r, "age"); raw != "" {
		bucket, err := record.ParseAgeBucket(raw)
		if err != nil {
			return opts, err
		}
		opts.Refinement.Age = bucket
	}

	if raw := strings.TrimSpace(composables.GetLastQueryParam(r, "scope")); raw != "" {
		opts.EmployeeScope = raw
	}
	if raw := composables.GetLastQueryParam(r, "show_test"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.Wrap(err, "invalid show_test")
		}
		opts.ShowTestData = show
	}
	if id, ok := middleware.SelectedTenant(r); ok {
		opts.TenantID = id
	}

	if raw := composables.GetLastQueryParam(r, "sort"); raw != "" {
		opts.Sort = record.ParseSort(raw)
	}
	if raw := composables.GetLastQueryParam(r, "page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return opts, errors.New("invalid page")
		}
		opts.Page = page
	}
	if raw := composables.GetLastQueryParam(r, "limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, errors.New("invalid limit")
		}
		opts.PageSize = limit
	}

	return opts, nil
}

// parseTagsParam accepts repeated tags parameters and comma-separated
// values, in any combination. Nil means the parameter was absent.
func parseTagsParam(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	tags := make([]string, 0, len(values))
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
