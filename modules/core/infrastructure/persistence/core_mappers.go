package persistence

import (
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence/models"
)

func toDomainTenant(t *models.Tenant) (*tenant.Tenant, error) {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tenant id")
	}
	return tenant.New(
		t.Name,
		tenant.WithID(id),
		tenant.WithDomain(t.Domain.String),
		tenant.WithIsActive(t.IsActive),
		tenant.WithCreatedAt(t.CreatedAt),
		tenant.WithUpdatedAt(t.UpdatedAt),
	), nil
}

func toDBTenant(t *tenant.Tenant) *models.Tenant {
	return &models.Tenant{
		ID:        t.ID().String(),
		Name:      t.Name(),
		Domain:    nullString(t.Domain()),
		IsActive:  t.IsActive(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func toDomainUser(u *models.User) (user.User, error) {
	tenantID, err := uuid.Parse(u.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tenant id")
	}
	role, err := user.NewRole(u.Role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to map user role")
	}

	options := []user.Option{
		user.WithID(u.ID),
		user.WithDisplayName(u.DisplayName),
		user.WithPasswordHash(u.Password.String),
		user.WithAPIToken(u.APIToken.String),
		user.WithCreatedAt(u.CreatedAt),
		user.WithUpdatedAt(u.UpdatedAt),
	}
	if u.LastLogin.Valid {
		lastLogin := u.LastLogin.Time
		options = append(options, user.WithLastLogin(&lastLogin))
	}

	return user.New(tenantID, u.Email, role, options...), nil
}

func toDBUser(entity user.User) *models.User {
	var lastLogin sql.NullTime
	if entity.LastLogin() != nil {
		lastLogin = sql.NullTime{Time: *entity.LastLogin(), Valid: true}
	}
	return &models.User{
		ID:          entity.ID(),
		TenantID:    entity.TenantID().String(),
		Email:       entity.Email(),
		DisplayName: entity.DisplayName(),
		Role:        entity.Role().String(),
		Password:    nullString(entity.PasswordHash()),
		APIToken:    nullString(entity.APIToken()),
		LastLogin:   lastLogin,
		CreatedAt:   entity.CreatedAt(),
		UpdatedAt:   entity.UpdatedAt(),
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
