package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
)

// refineRecords narrows an already scoped fetch in memory, in fixed order:
// substring search, facet equality, tag intersection, age bucket. The input
// slice is never mutated; cached sets stay intact.
func refineRecords(ent catalog.Entity, items []record.Record, ref record.Refinement, now time.Time) []record.Record {
	if ref.IsZero() {
		return items
	}
	out := items
	if q := strings.TrimSpace(ref.Search); q != "" {
		out = filterSearch(ent, out, q)
	}
	if len(ref.Facets) > 0 {
		out = filterFacets(out, ref.Facets)
	}
	if len(ref.Tags) > 0 {
		out = filterTags(out, ref.Tags)
	}
	if ref.Age != "" {
		out = filterAge(out, ref.Age, now)
	}
	return out
}

// filterSearch keeps records whose display fields contain the query,
// case-insensitively.
func filterSearch(ent catalog.Entity, items []record.Record, query string) []record.Record {
	needle := strings.ToLower(query)
	out := make([]record.Record, 0, len(items))
	for _, rec := range items {
		for _, name := range ent.DisplayFields {
			v, ok := rec.Field(name)
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(valueString(v)), needle) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func filterFacets(items []record.Record, facets map[string]string) []record.Record {
	out := make([]record.Record, 0, len(items))
	for _, rec := range items {
		matched := true
		for field, want := range facets {
			v, _ := rec.Field(field)
			if valueString(v) != want {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, rec)
		}
	}
	return out
}

// filterTags applies intersection semantics: a record survives only when it
// carries every selected tag.
func filterTags(items []record.Record, tags []string) []record.Record {
	out := make([]record.Record, 0, len(items))
	for _, rec := range items {
		if rec.HasTags(tags) {
			out = append(out, rec)
		}
	}
	return out
}

func filterAge(items []record.Record, bucket record.AgeBucket, now time.Time) []record.Record {
	out := make([]record.Record, 0, len(items))
	for _, rec := range items {
		if record.BucketFor(rec.CreatedAt(), now) == bucket {
			out = append(out, rec)
		}
	}
	return out
}

// facetCounts tallies the entity's facet field over items. Records without a
// value count under the empty key, matching the SQL GROUP BY shape.
func facetCounts(ent catalog.Entity, items []record.Record) map[string]int64 {
	counts := map[string]int64{}
	if ent.FacetField == "" {
		return counts
	}
	for _, rec := range items {
		v, _ := rec.Field(ent.FacetField)
		counts[valueString(v)]++
	}
	return counts
}

// sortRecords orders items in place by the sort field. Records missing the
// field sort last regardless of direction; string comparison is
// case-sensitive.
func sortRecords(items []record.Record, srt record.Sort) {
	if srt.Field == "" {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return recordBefore(items[i], items[j], srt)
	})
}

func recordBefore(a, b record.Record, srt record.Sort) bool {
	av, aok := sortValue(a, srt.Field)
	bv, bok := sortValue(b, srt.Field)
	if aok != bok {
		return aok
	}
	if !aok {
		return false
	}
	cmp := compareValues(av, bv)
	if srt.Descending {
		return cmp > 0
	}
	return cmp < 0
}

// sortValue extracts the sortable value for field, treating the envelope
// timestamps as fields. Empty strings count as missing.
func sortValue(rec record.Record, field string) (any, bool) {
	switch field {
	case "created_at":
		return rec.CreatedAt(), true
	case "updated_at":
		return rec.UpdatedAt(), true
	}
	v, ok := rec.Field(field)
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

// compareValues orders two field values: timestamps and numbers numerically,
// everything else as case-sensitive strings.
func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	af, aNum := numericValue(a)
	bf, bNum := numericValue(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(valueString(a), valueString(b))
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func valueString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
