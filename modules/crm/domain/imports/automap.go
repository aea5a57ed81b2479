package imports

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
)

// Destination sentinels. Anything else in a ColumnMapping.Field must be a
// declared catalog field.
const (
	// Skip marks a column that feeds no destination field.
	Skip = "skip"
	// AccountLink marks the reserved cross-entity linking column. At most
	// one column per mapping carries it.
	AccountLink = "account_link"
)

// ColumnMapping binds one source column, by position, to its destination.
type ColumnMapping struct {
	Header string `json:"header"`
	Field  string `json:"field"`
}

// Mapping covers every source column in order.
type Mapping []ColumnMapping

// AutoMap proposes a mapping for the given headers. Each header is
// normalized and matched against the entity's synonym table; the first
// matching field in catalog order wins. On entities that support linking,
// the first column matching a linking synonym is reserved for it. Unmatched
// headers are skipped.
func AutoMap(entity catalog.Entity, headers []string) Mapping {
	index := entity.SynonymIndex()
	mapping := make(Mapping, 0, len(headers))
	linked := false

	for _, header := range headers {
		if entity.HasLinking() && entity.IsLinkingHeader(header) {
			if linked {
				mapping = append(mapping, ColumnMapping{Header: header, Field: Skip})
				continue
			}
			linked = true
			mapping = append(mapping, ColumnMapping{Header: header, Field: AccountLink})
			continue
		}
		field, ok := index[catalog.NormalizeHeader(header)]
		if !ok {
			field = Skip
		}
		mapping = append(mapping, ColumnMapping{Header: header, Field: field})
	}
	return mapping
}

// MappingIssues are the problems that block an import run.
type MappingIssues struct {
	// Missing lists required fields no column maps to.
	Missing []string `json:"missing,omitempty"`
	// Duplicated lists fields more than one column maps to.
	Duplicated []string `json:"duplicated,omitempty"`
	// Unknown lists mapped destinations the entity does not declare.
	Unknown []string `json:"unknown,omitempty"`
}

func (i MappingIssues) OK() bool {
	return len(i.Missing) == 0 && len(i.Duplicated) == 0 && len(i.Unknown) == 0
}

// Issues validates the mapping against the entity: every required field
// mapped exactly once, no field mapped twice, no undeclared destinations.
func (m Mapping) Issues(entity catalog.Entity) MappingIssues {
	var issues MappingIssues
	counts := make(map[string]int)
	for _, col := range m {
		switch col.Field {
		case Skip:
		case AccountLink:
			if !entity.HasLinking() {
				issues.Unknown = append(issues.Unknown, AccountLink)
			}
			counts[AccountLink]++
		default:
			if _, declared := entity.Field(col.Field); !declared {
				issues.Unknown = append(issues.Unknown, col.Field)
				continue
			}
			counts[col.Field]++
		}
	}
	for field, n := range counts {
		if n > 1 {
			issues.Duplicated = append(issues.Duplicated, field)
		}
	}
	for _, required := range entity.RequiredFields() {
		if counts[required] == 0 {
			issues.Missing = append(issues.Missing, required)
		}
	}
	sort.Strings(issues.Missing)
	sort.Strings(issues.Duplicated)
	sort.Strings(issues.Unknown)
	return issues
}

// suggestionDistance bounds how far a header may sit from a candidate form
// before fuzzy ranking stops offering it.
const suggestionDistance = 3

// Suggest ranks catalog fields a skipped header might have meant. Truncated
// headers are caught by subsequence matching, typos by edit distance.
// Suggestions feed the preview only; they are never applied automatically.
func Suggest(entity catalog.Entity, header string, limit int) []string {
	normalized := catalog.NormalizeHeader(header)
	if normalized == "" || limit <= 0 {
		return nil
	}

	type candidate struct {
		field    string
		distance int
	}
	var candidates []candidate
	consider := func(form, field string) {
		distance := fuzzy.LevenshteinDistance(normalized, form)
		if distance > suggestionDistance && !fuzzy.MatchNormalizedFold(normalized, form) {
			return
		}
		candidates = append(candidates, candidate{field: field, distance: distance})
	}
	for _, f := range entity.Fields {
		consider(catalog.NormalizeHeader(f.Name), f.Name)
		for _, syn := range f.Synonyms {
			consider(catalog.NormalizeHeader(syn), f.Name)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for _, c := range candidates {
		if _, dup := seen[c.field]; dup {
			continue
		}
		seen[c.field] = struct{}{}
		out = append(out, c.field)
		if len(out) == limit {
			break
		}
	}
	return out
}
