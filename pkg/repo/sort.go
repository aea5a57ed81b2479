package repo

import "strings"

// SortByField is a single sort directive over a repository field constant.
type SortByField[T comparable] struct {
	Field     T
	Ascending bool
	NullsLast bool
}

// SortBy is an ordered list of sort directives.
type SortBy[T comparable] struct {
	Fields []SortByField[T]
}

// ToSQL renders an ORDER BY clause using the repository's field map. Fields
// missing from the map are skipped; an empty result renders no clause.
func (s SortBy[T]) ToSQL(fieldMap map[T]string) string {
	if len(s.Fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		column, ok := fieldMap[f.Field]
		if !ok {
			continue
		}
		direction := " DESC"
		if f.Ascending {
			direction = " ASC"
		}
		clause := column + direction
		if f.NullsLast {
			clause += " NULLS LAST"
		}
		parts = append(parts, clause)
	}
	if len(parts) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
