package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence/models"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

var (
	ErrTenantNotFound = fmt.Errorf("tenant not found")
)

const (
	tenantFindQuery = `SELECT id, name, domain, is_active, created_at, updated_at FROM tenants`

	tenantCountQuery = `SELECT COUNT(id) FROM tenants`

	tenantInsertQuery = `
		INSERT INTO tenants (id, name, domain, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	tenantUpdateQuery = `
		UPDATE tenants
		SET name = $1, domain = $2, is_active = $3, updated_at = $4
		WHERE id = $5
		RETURNING id`

	tenantDeleteQuery = `DELETE FROM tenants WHERE id = $1`
)

type TenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &TenantRepository{}
}

func (r *TenantRepository) buildTenantFilters(params *tenant.FindParams) ([]string, []interface{}) {
	var where []string
	var args []interface{}

	if params.Search != "" {
		index := len(args) + 1
		where = append(
			where,
			fmt.Sprintf("(name ILIKE $%d OR domain ILIKE $%d)", index, index),
		)
		args = append(args, "%"+params.Search+"%")
	}

	return where, args
}

func (r *TenantRepository) Count(ctx context.Context, params *tenant.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	where, args := r.buildTenantFilters(params)
	query := repo.Join(tenantCountQuery, repo.JoinWhere(where...))

	var count int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count tenants")
	}
	return count, nil
}

func (r *TenantRepository) GetPaginated(ctx context.Context, params *tenant.FindParams) ([]*tenant.Tenant, error) {
	where, args := r.buildTenantFilters(params)
	query := repo.Join(
		tenantFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY created_at DESC",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	return r.queryTenants(ctx, query, args...)
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE domain = $1", strings.ToLower(strings.TrimSpace(domain)))
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbTenant := toDBTenant(t)
	dbTenant.Domain.String = strings.ToLower(strings.TrimSpace(dbTenant.Domain.String))

	var idStr string
	if err := tx.QueryRow(
		ctx,
		tenantInsertQuery,
		dbTenant.ID,
		dbTenant.Name,
		dbTenant.Domain,
		dbTenant.IsActive,
		dbTenant.CreatedAt,
		dbTenant.UpdatedAt,
	).Scan(&idStr); err != nil {
		return nil, errors.Wrap(err, "failed to insert tenant")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tenant id")
	}
	return r.GetByID(ctx, id)
}

func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbTenant := toDBTenant(t)
	dbTenant.Domain.String = strings.ToLower(strings.TrimSpace(dbTenant.Domain.String))

	var idStr string
	if err := tx.QueryRow(
		ctx,
		tenantUpdateQuery,
		dbTenant.Name,
		dbTenant.Domain,
		dbTenant.IsActive,
		dbTenant.UpdatedAt,
		dbTenant.ID,
	).Scan(&idStr); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to update tenant with ID: %s", dbTenant.ID))
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tenant id")
	}
	return r.GetByID(ctx, id)
}

func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	if _, err := tx.Exec(ctx, tenantDeleteQuery, id.String()); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to delete tenant with ID: %s", id))
	}
	return nil
}

func (r *TenantRepository) queryTenants(ctx context.Context, query string, args ...interface{}) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Domain,
			&t.IsActive,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant row")
		}
		entity, err := toDomainTenant(&t)
		if err != nil {
			return nil, errors.Wrap(err, "failed to map tenant row")
		}
		tenants = append(tenants, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return tenants, nil
}
