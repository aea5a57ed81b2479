package imports

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
)

// NormalizePhone renders a North American number as (XXX) XXX-XXXX when the
// raw value carries exactly 10 digits, or 11 with a leading 1. Anything else
// is returned untouched; authoritative validation is the server's job.
func NormalizePhone(raw string) string {
	var digits []rune
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	switch {
	case len(digits) == 11 && digits[0] == '1':
		digits = digits[1:]
	case len(digits) != 10:
		return raw
	}
	return fmt.Sprintf("(%s) %s-%s", string(digits[0:3]), string(digits[3:6]), string(digits[6:10]))
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeCurrency strips currency punctuation and renders the amount as a
// canonical decimal string. Unparseable values pass through raw.
func NormalizeCurrency(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "$€£")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return raw
	}
	return amount.String()
}

// normalizeSelect matches the trimmed, lowercased, underscored value against
// the field's options; misses keep the trimmed raw value for the server to
// judge.
func normalizeSelect(field catalog.Field, raw string) string {
	trimmed := strings.TrimSpace(raw)
	folded := strings.ReplaceAll(strings.ToLower(trimmed), " ", "_")
	for _, option := range field.Options {
		if folded == option {
			return option
		}
	}
	return trimmed
}

// NormalizeField applies the kind-specific normalization for one value.
func NormalizeField(field catalog.Field, raw string) string {
	switch field.Kind {
	case catalog.KindEmail:
		return NormalizeEmail(raw)
	case catalog.KindPhone:
		return strings.TrimSpace(NormalizePhone(strings.TrimSpace(raw)))
	case catalog.KindCurrency:
		return NormalizeCurrency(raw)
	case catalog.KindSelect:
		return normalizeSelect(field, raw)
	default:
		return strings.TrimSpace(raw)
	}
}

// Row is one transformed data row: the candidate field set plus the raw
// linking value, if the mapping reserved a linking column.
type Row struct {
	// Number is the 1-based data row position, for diagnostics.
	Number    int            `json:"number"`
	Fields    map[string]any `json:"fields"`
	LinkValue string         `json:"link_value,omitempty"`
}

// Diagnostic is a per-row note surfaced in the import preview.
type Diagnostic struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Transform converts table rows into candidate field sets under the given
// mapping. Values empty after normalization are dropped; rows left with no
// fields at all are dropped with a diagnostic. Assignment defaults and the
// test-data flag are applied later, when records are built.
func Transform(entity catalog.Entity, table *Table, mapping Mapping) ([]Row, []Diagnostic) {
	rows := make([]Row, 0, len(table.Rows))
	var diagnostics []Diagnostic

	for i, raw := range table.Rows {
		row := Row{Number: i + 1, Fields: make(map[string]any)}
		for col, bound := range mapping {
			value := strings.TrimSpace(table.Cell(raw, col))
			if value == "" {
				continue
			}
			switch bound.Field {
			case Skip:
			case AccountLink:
				row.LinkValue = value
			default:
				field, ok := entity.Field(bound.Field)
				if !ok {
					continue
				}
				normalized := NormalizeField(field, value)
				if normalized == "" {
					continue
				}
				row.Fields[bound.Field] = normalized
			}
		}
		if len(row.Fields) == 0 {
			diagnostics = append(diagnostics, Diagnostic{
				Row:     row.Number,
				Message: "no usable values, row dropped",
			})
			continue
		}
		rows = append(rows, row)
	}
	return rows, diagnostics
}
