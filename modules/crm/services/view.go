package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
)

// ViewOptions carries everything a caller may narrow a record view by. The
// same shape feeds lists, stats, exports, and select-all bulk targeting so
// all of them see the identical record set.
type ViewOptions struct {
	// TenantID is an explicit tenant selection. Only elevated callers may
	// select; the scope builder ignores it for everyone else.
	TenantID      uuid.UUID
	EmployeeScope string
	ShowTestData  bool
	Refinement    record.Refinement
	Sort          record.Sort
	Page          int
	PageSize      int
}

// buildViewScope assembles the caller's scope for one entity view. A missing
// user yields a non-fetchable scope.
func buildViewScope(ctx context.Context, resolver scope.AssigneeResolver, entity string, opts ViewOptions) scope.Scope {
	currentUser, err := composables.UseUser(ctx)
	if err != nil {
		currentUser = nil
	}
	return scope.Build(ctx, scope.Input{
		User:             currentUser,
		Entity:           entity,
		SelectedTenantID: opts.TenantID,
		EmployeeScope:    opts.EmployeeScope,
		ShowTestData:     opts.ShowTestData,
	}, resolver)
}

// ResolveTenant returns the tenant a mutation should land in. Elevated
// callers may select one explicitly; everyone else is pinned to their own
// tenant. Without a user the context tenant decides.
func ResolveTenant(ctx context.Context, selected uuid.UUID) (uuid.UUID, error) {
	currentUser, err := composables.UseUser(ctx)
	if err != nil || currentUser == nil {
		return composables.UseTenantID(ctx)
	}
	if currentUser.Role().IsElevated() && selected != uuid.Nil {
		return selected, nil
	}
	return currentUser.TenantID(), nil
}

// resolveAssigneeValue canonicalizes an assignee selection. The unassigned
// sentinel clears the assignment; selections the resolver cannot answer pass
// through raw.
func resolveAssigneeValue(ctx context.Context, resolver scope.AssigneeResolver, tenantID uuid.UUID, selection string) string {
	selection = strings.TrimSpace(selection)
	if selection == "" || selection == scope.Unassigned {
		return ""
	}
	if resolver == nil {
		return selection
	}
	resolved, err := resolver.ResolveAssignee(ctx, tenantID, selection)
	if err != nil || resolved == "" {
		return selection
	}
	return resolved
}

type listKeyParams struct {
	Filter record.Filter `json:"filter"`
	Sort   string        `json:"sort"`
}

// listCacheKey derives the cache key for one scoped, sorted fetch. Two views
// share an entry exactly when their backend filter and sort agree; the
// in-memory refinement never participates.
func listCacheKey(entity string, filter record.Filter, srt record.Sort) querycache.Key {
	return querycache.NewKey(entity, "list", listKeyParams{Filter: filter, Sort: srt.String()})
}

// fetchScopeSet loads the full scope-matching set from the backend, sorted
// and capped at limit. The transaction is pinned to the scope's tenant, not
// the session's, so elevated cross-tenant views read the right rows.
func fetchScopeSet(ctx context.Context, repository record.Repository, sc scope.Scope, srt record.Sort, limit int) ([]record.Record, error) {
	tenantCtx := composables.WithTenantID(ctx, sc.Filter.TenantID)
	items, err := runInTenantTxResult(tenantCtx, func(txCtx context.Context) ([]record.Record, error) {
		return repository.Find(txCtx, &record.FindParams{Filter: sc.Filter, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	sortRecords(items, srt)
	return items, nil
}
