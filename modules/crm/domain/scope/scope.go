// Package scope turns a caller's identity and view selections into the
// backend filter for record queries. Tenancy rules live here and nowhere
// else: a query service that receives a non-fetchable scope must not touch
// the backend at all.
package scope

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
)

// Unassigned is the sentinel employee-scope value selecting records with no
// assignee. It matches both NULL and empty-string assignment.
const Unassigned = "unassigned"

// AssigneeResolver maps a human-readable employee selection (a display name)
// to the canonical assignee key (the employee's email).
type AssigneeResolver interface {
	ResolveAssignee(ctx context.Context, tenantID uuid.UUID, selection string) (string, error)
}

// Input captures everything the filter depends on. Build is deterministic
// over it, modulo resolver lookups.
type Input struct {
	User   user.User
	Entity string
	// SelectedTenantID is the tenant an elevated caller chose to view.
	// uuid.Nil means no selection. Non-elevated callers cannot select.
	SelectedTenantID uuid.UUID
	EmployeeScope    string
	ShowTestData     bool
}

// Scope is the build outcome. When Fetchable is false the filter is
// meaningless and no backend query may be issued; the caller renders an
// empty loaded state instead.
type Scope struct {
	Filter    record.Filter
	Fetchable bool
}

// Build assembles the filter from small predicates, in rule order: tenant,
// employee scope, test-data exclusion.
func Build(ctx context.Context, in Input, resolver AssigneeResolver) Scope {
	if in.User == nil {
		return Scope{}
	}

	filter := record.Filter{Entity: in.Entity}
	if !withTenant(in, &filter) {
		return Scope{}
	}
	withEmployeeScope(ctx, in, resolver, &filter)
	withTestData(in, &filter)

	return Scope{Filter: filter, Fetchable: true}
}

// withTenant pins the tenant constraint. Elevated callers see only an
// explicitly selected tenant; everyone else is locked to their own. A false
// return means no safe tenant constraint exists.
func withTenant(in Input, filter *record.Filter) bool {
	if in.User.Role().IsElevated() {
		if in.SelectedTenantID == uuid.Nil {
			return false
		}
		filter.TenantID = in.SelectedTenantID
		return true
	}
	filter.TenantID = in.User.TenantID()
	return true
}

func withEmployeeScope(ctx context.Context, in Input, resolver AssigneeResolver, filter *record.Filter) {
	selection := strings.TrimSpace(in.EmployeeScope)
	switch {
	case selection == Unassigned:
		filter.Unassigned = true
	case selection != "":
		assignee := resolveAssignee(ctx, resolver, filter.TenantID, selection)
		filter.Assignee = &assignee
	case in.User.Role() == user.RoleAgent:
		// Agents with no explicit scope see their own records only.
		self := in.User.Email()
		filter.Assignee = &self
	}
}

func withTestData(in Input, filter *record.Filter) {
	filter.IncludeTest = in.ShowTestData
}

// resolveAssignee returns the canonical assignee key for the selection,
// falling back to the raw selection when the resolver has no answer.
func resolveAssignee(ctx context.Context, resolver AssigneeResolver, tenantID uuid.UUID, selection string) string {
	if resolver == nil {
		return selection
	}
	resolved, err := resolver.ResolveAssignee(ctx, tenantID, selection)
	if err != nil || resolved == "" {
		return selection
	}
	return resolved
}
