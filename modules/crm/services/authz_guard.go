package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

var (
	recordsAuthzObject = authz.ObjectName("crm", "records")
	importsAuthzObject = authz.ObjectName("crm", "imports")
	exportsAuthzObject = authz.ObjectName("crm", "exports")
	assistAuthzObject  = authz.ObjectName("crm", "assist")
)

func authorizeRecords(ctx context.Context, action string) error {
	return authorizeCRM(ctx, recordsAuthzObject, action)
}

func authorizeImports(ctx context.Context, action string) error {
	return authorizeCRM(ctx, importsAuthzObject, action)
}

func authorizeExports(ctx context.Context, action string) error {
	return authorizeCRM(ctx, exportsAuthzObject, action)
}

func authorizeAssist(ctx context.Context, action string) error {
	return authorizeCRM(ctx, assistAuthzObject, action)
}

var authorizeCRMFn = defaultAuthorizeCRM

func authorizeCRM(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
	return authorizeCRMFn(ctx, object, action, opts...)
}

// defaultAuthorizeCRM checks the caller against the casbin policy. Role
// grants are consulted first, then direct per-user grants. Contexts without
// a user pass through; authentication is the middleware's job.
func defaultAuthorizeCRM(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
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
