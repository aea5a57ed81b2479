package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

var logsAuthzObject = authz.ObjectName("audit", "logs")

func authorizeLogs(ctx context.Context, action string) error {
	return authorizeAuditFn(ctx, logsAuthzObject, action)
}

var authorizeAuditFn = defaultAuthorizeAudit

// defaultAuthorizeAudit checks the caller against the casbin policy, role
// grants first and direct per-user grants second. Contexts without a user
// pass through; event handlers write logs on their own behalf.
func defaultAuthorizeAudit(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
	currentUser, err := composables.UseUser(ctx)
	if err != nil || currentUser == nil {
		return nil
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		tenantID = uuid.Nil
	}

	svc := authz.Use()
	domain := authz.DomainFromTenant(tenantID)
	normalized := authz.NormalizeAction(action)

	roleReq := authz.NewRequest(
		authz.SubjectForRole(currentUser.Role().String()),
		domain,
		object,
		normalized,
		opts...,
	)
	if allowed, err := svc.Check(ctx, roleReq); err == nil && allowed {
		return nil
	}

	userReq := authz.NewRequest(
		authz.SubjectForUserID(tenantID, strconv.FormatUint(uint64(currentUser.ID()), 10)),
		domain,
		object,
		normalized,
		opts...,
	)
	return svc.Authorize(ctx, userReq)
}
