// Package catalog declares the CRM entity schemas: field names and kinds,
// search surfaces, import synonyms, facet fields, and default sort orders.
// Every record service is generic over these definitions, so adding an entity
// is a YAML change, not a code change.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed entities.yaml
var entitiesYAML []byte

// FieldKind drives import normalization and export rendering for a field.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindEmail     FieldKind = "email"
	KindPhone     FieldKind = "phone"
	KindCurrency  FieldKind = "currency"
	KindDate      FieldKind = "date"
	KindMultiline FieldKind = "multiline"
	KindSelect    FieldKind = "select"
)

func (k FieldKind) IsValid() bool {
	switch k {
	case KindText, KindEmail, KindPhone, KindCurrency, KindDate, KindMultiline, KindSelect:
		return true
	}
	return false
}

type Field struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required"`
	Options  []string  `yaml:"options"`
	Synonyms []string  `yaml:"synonyms"`
}

// Entity describes one record type. Field order is the declared order and is
// load-bearing: export headers and automap precedence both follow it.
type Entity struct {
	Name            string   `yaml:"name"`
	FacetField      string   `yaml:"facet_field"`
	DefaultSort     string   `yaml:"default_sort"`
	DisplayFields   []string `yaml:"display_fields"`
	LinkingSynonyms []string `yaml:"linking_synonyms"`
	Fields          []Field  `yaml:"fields"`
}

// Field returns the declared field by name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in declared order.
func (e Entity) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}

// RequiredFields returns the names of fields an import mapping must cover.
func (e Entity) RequiredFields() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// HasLinking reports whether the entity reserves a column for cross-entity
// account linking during import.
func (e Entity) HasLinking() bool {
	return len(e.LinkingSynonyms) > 0
}

// IsLinkingHeader reports whether a raw column header names the reserved
// linking column. Matching happens on the normalized form.
func (e Entity) IsLinkingHeader(header string) bool {
	normalized := NormalizeHeader(header)
	for _, syn := range e.LinkingSynonyms {
		if normalized == NormalizeHeader(syn) {
			return true
		}
	}
	return false
}

// SynonymIndex maps normalized header forms to field names. A field's own
// name always matches; explicit synonyms extend it. Fields are indexed in
// declared order and the first claim on a form wins.
func (e Entity) SynonymIndex() map[string]string {
	index := make(map[string]string)
	claim := func(form, field string) {
		if _, taken := index[form]; !taken {
			index[form] = field
		}
	}
	for _, f := range e.Fields {
		claim(NormalizeHeader(f.Name), f.Name)
		for _, syn := range f.Synonyms {
			claim(NormalizeHeader(syn), f.Name)
		}
	}
	return index
}

// NormalizeHeader canonicalizes a column header for synonym matching: trim,
// lowercase, and collapse underscore/hyphen/whitespace runs to single spaces.
func NormalizeHeader(header string) string {
	lowered := strings.ToLower(strings.TrimSpace(header))
	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch r {
		case ' ', '\t', '_', '-':
			pendingSpace = b.Len() > 0
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Catalog is the full set of entity definitions.
type Catalog struct {
	entities []Entity
	byName   map[string]Entity
}

var ErrUnknownEntity = fmt.Errorf("unknown entity")

// Parse loads and validates catalog definitions from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Entities []Entity `yaml:"entities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("catalog: no entities declared")
	}

	c := &Catalog{
		entities: doc.Entities,
		byName:   make(map[string]Entity, len(doc.Entities)),
	}
	for _, entity := range doc.Entities {
		if entity.Name == "" {
			return nil, fmt.Errorf("catalog: entity with empty name")
		}
		if _, dup := c.byName[entity.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate entity %q", entity.Name)
		}
		if err := validateEntity(entity); err != nil {
			return nil, fmt.Errorf("catalog: entity %q: %w", entity.Name, err)
		}
		c.byName[entity.Name] = entity
	}
	return c, nil
}

func validateEntity(entity Entity) error {
	if len(entity.Fields) == 0 {
		return fmt.Errorf("no fields")
	}
	seen := make(map[string]struct{}, len(entity.Fields))
	for _, f := range entity.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Kind.IsValid() {
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
		if f.Kind == KindSelect && len(f.Options) == 0 {
			return fmt.Errorf("field %q: select kind requires options", f.Name)
		}
	}
	for _, name := range entity.DisplayFields {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("display field %q not declared", name)
		}
	}
	if entity.FacetField != "" {
		if _, ok := seen[entity.FacetField]; !ok {
			return fmt.Errorf("facet field %q not declared", entity.FacetField)
		}
	}
	if entity.DefaultSort != "" {
		sortField := strings.TrimPrefix(entity.DefaultSort, "-")
		if _, ok := seen[sortField]; !ok && !isMetaSort(sortField) {
			return fmt.Errorf("default sort %q not declared", entity.DefaultSort)
		}
	}
	return nil
}

// created_at and updated_at live on the record envelope, not in the field
// map, but remain valid sort targets.
func isMetaSort(field string) bool {
	return field == "created_at" || field == "updated_at"
}

// Get returns the entity definition for name.
func (c *Catalog) Get(name string) (Entity, error) {
	entity, ok := c.byName[name]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return entity, nil
}

// Has reports whether name is a declared entity.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Entities returns definitions in declared order.
func (c *Catalog) Entities() []Entity {
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Names returns entity names in declared order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e.Name)
	}
	return out
}

// Default returns the catalog built from the embedded definitions. The
// embedded YAML is validated by tests, so a parse failure here is a build
// defect and panics.
var Default = sync.OnceValue(func() *Catalog {
	c, err := Parse(entitiesYAML)
	if err != nil {
		panic(err)
	}
	return c
})
