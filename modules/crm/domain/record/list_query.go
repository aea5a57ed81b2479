package record

import (
	"fmt"
	"strings"
	"time"
)

// AgeBucket classifies a record by how long ago it was created.
type AgeBucket string

const (
	AgeWeek    AgeBucket = "7d"
	AgeMonth   AgeBucket = "30d"
	AgeQuarter AgeBucket = "90d"
	AgeOlder   AgeBucket = "older"
)

// BucketFor places createdAt relative to now. Boundaries are half-open:
// exactly seven days old still counts as "7d".
func BucketFor(createdAt, now time.Time) AgeBucket {
	age := now.Sub(createdAt)
	switch {
	case age <= 7*24*time.Hour:
		return AgeWeek
	case age <= 30*24*time.Hour:
		return AgeMonth
	case age <= 90*24*time.Hour:
		return AgeQuarter
	default:
		return AgeOlder
	}
}

func ParseAgeBucket(raw string) (AgeBucket, error) {
	switch AgeBucket(raw) {
	case AgeWeek, AgeMonth, AgeQuarter, AgeOlder:
		return AgeBucket(raw), nil
	}
	return "", fmt.Errorf("unknown age bucket %q", raw)
}

// Sort is a single-field sort order. Field may name a catalog field or the
// created_at/updated_at envelope columns.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// ParseSort reads the API form: a field name with an optional leading "-"
// marking descending order.
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	if field, ok := strings.CutPrefix(raw, "-"); ok {
		return Sort{Field: field, Descending: true}
	}
	return Sort{Field: raw}
}

func (s Sort) String() string {
	if s.Descending {
		return "-" + s.Field
	}
	return s.Field
}

// Refinement is the in-memory filtering applied on top of a backend Filter:
// substring search, facet equality, tag intersection, and age buckets. The
// zero value refines nothing.
type Refinement struct {
	Search string            `json:"search,omitempty"`
	Facets map[string]string `json:"facets,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
	Age    AgeBucket         `json:"age,omitempty"`
}

// IsZero reports whether the refinement leaves the fetched set untouched.
// When it does, backend counts are authoritative.
func (r Refinement) IsZero() bool {
	return r.Search == "" && len(r.Facets) == 0 && len(r.Tags) == 0 && r.Age == ""
}

// ListQuery is a full list request: the backend filter plus in-memory
// refinement, ordering, and the page window.
type ListQuery struct {
	Filter     Filter
	Refinement Refinement
	Sort       Sort
	Page       int
	PageSize   int
}

// ListResult is the canonical shape every list fetch is normalized into.
// Total counts the post-refinement set, not the page slice and not the raw
// backend count.
type ListResult struct {
	Items  []Record
	Total  int
	Counts map[string]int64
	Page   int
}
