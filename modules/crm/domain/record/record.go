// Package record models a CRM record as an opaque field map under a stable
// identity. Field semantics live in the entity catalog; this package only
// guarantees tenancy, assignment, tagging, and the test-data flag.
package record

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one CRM record of any catalog entity.
type Record interface {
	ID() uuid.UUID
	TenantID() uuid.UUID
	Entity() string
	Fields() map[string]any
	Field(name string) (any, bool)
	Tags() []string
	HasTags(tags []string) bool
	Assignee() string
	AccountID() *uuid.UUID
	IsTest() bool
	CreatedAt() time.Time
	UpdatedAt() time.Time

	SetFields(fields map[string]any) Record
	MergeFields(fields map[string]any) Record
	SetTags(tags []string) Record
	SetAssignee(assignee string) Record
	SetAccountID(id *uuid.UUID) Record
	SetIsTest(isTest bool) Record
}

type Option func(r *record)

func WithID(id uuid.UUID) Option {
	return func(r *record) {
		r.id = id
	}
}

func WithTags(tags []string) Option {
	return func(r *record) {
		r.tags = normalizeTags(tags)
	}
}

func WithAssignee(assignee string) Option {
	return func(r *record) {
		r.assignee = strings.TrimSpace(assignee)
	}
}

func WithAccountID(id *uuid.UUID) Option {
	return func(r *record) {
		r.accountID = id
	}
}

func WithIsTest(isTest bool) Option {
	return func(r *record) {
		r.isTest = isTest
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(r *record) {
		r.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(r *record) {
		r.updatedAt = updatedAt
	}
}

func New(tenantID uuid.UUID, entity string, fields map[string]any, opts ...Option) Record {
	r := &record{
		id:        uuid.New(),
		tenantID:  tenantID,
		entity:    entity,
		fields:    copyFields(fields),
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type record struct {
	id        uuid.UUID
	tenantID  uuid.UUID
	entity    string
	fields    map[string]any
	tags      []string
	assignee  string
	accountID *uuid.UUID
	isTest    bool
	createdAt time.Time
	updatedAt time.Time
}

func (r *record) ID() uuid.UUID {
	return r.id
}

func (r *record) TenantID() uuid.UUID {
	return r.tenantID
}

func (r *record) Entity() string {
	return r.entity
}

func (r *record) Fields() map[string]any {
	return copyFields(r.fields)
}

func (r *record) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

func (r *record) Tags() []string {
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}

// HasTags reports whether the record carries every tag in tags. An empty
// selection always matches.
func (r *record) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range r.tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *record) Assignee() string {
	return r.assignee
}

func (r *record) AccountID() *uuid.UUID {
	return r.accountID
}

func (r *record) IsTest() bool {
	return r.isTest
}

func (r *record) CreatedAt() time.Time {
	return r.createdAt
}

func (r *record) UpdatedAt() time.Time {
	return r.updatedAt
}

func (r *record) SetFields(fields map[string]any) Record {
	out := *r
	out.fields = copyFields(fields)
	out.updatedAt = time.Now()
	return &out
}

// MergeFields overlays fields onto the current map. A nil value removes the
// field, mirroring JSON merge-patch.
func (r *record) MergeFields(fields map[string]any) Record {
	out := *r
	merged := copyFields(r.fields)
	for name, value := range fields {
		if value == nil {
			delete(merged, name)
			continue
		}
		merged[name] = value
	}
	out.fields = merged
	out.updatedAt = time.Now()
	return &out
}

func (r *record) SetTags(tags []string) Record {
	out := *r
	out.tags = normalizeTags(tags)
	out.updatedAt = time.Now()
	return &out
}

func (r *record) SetAssignee(assignee string) Record {
	out := *r
	out.assignee = strings.TrimSpace(assignee)
	out.updatedAt = time.Now()
	return &out
}

func (r *record) SetAccountID(id *uuid.UUID) Record {
	out := *r
	out.accountID = id
	out.updatedAt = time.Now()
	return &out
}

func (r *record) SetIsTest(isTest bool) Record {
	out := *r
	out.isTest = isTest
	out.updatedAt = time.Now()
	return &out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// normalizeTags trims, drops empties, and de-duplicates preserving order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
