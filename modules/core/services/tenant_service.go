package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

var tenantsAuthzObject = authz.ObjectName("core", "tenants")

func authorizeTenants(ctx context.Context, action string) error {
	return authorizeCore(ctx, tenantsAuthzObject, action)
}

type TenantService struct {
	repo tenant.Repository
}

func NewTenantService(repo tenant.Repository) *TenantService {
	return &TenantService{repo: repo}
}

func (s *TenantService) Count(ctx context.Context, params *tenant.FindParams) (int64, error) {
	if err := authorizeTenants(ctx, "list"); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, params)
}

func (s *TenantService) GetPaginated(ctx context.Context, params *tenant.FindParams) ([]*tenant.Tenant, error) {
	if err := authorizeTenants(ctx, "list"); err != nil {
		return nil, err
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if err := authorizeTenants(ctx, "view"); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *TenantService) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	if err := authorizeTenants(ctx, "view"); err != nil {
		return nil, err
	}
	return s.repo.GetByDomain(ctx, domain)
}

func (s *TenantService) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	if err := authorizeTenants(ctx, "create"); err != nil {
		return nil, err
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (*tenant.Tenant, error) {
		return s.repo.Create(txCtx, t)
	})
}

func (s *TenantService) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	if err := authorizeTenants(ctx, "update"); err != nil {
		return nil, err
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (*tenant.Tenant, error) {
		return s.repo.Update(txCtx, t)
	})
}

func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := authorizeTenants(ctx, "delete"); err != nil {
		return err
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
}
