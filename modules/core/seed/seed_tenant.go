package seed

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

// DefaultTenantID is the fixed identifier of the tenant created by seeding.
var DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func CreateDefaultTenant(ctx context.Context, app application.Application) error {
	conf := configuration.Use()
	logger := conf.Logger()
	tenantRepository := persistence.NewTenantRepository()
	desiredDomain := "default.localhost"

	defaultTenant := tenant.New(
		"Default",
		tenant.WithID(DefaultTenantID),
		tenant.WithDomain(desiredDomain),
	)

	existing, err := tenantRepository.GetByID(ctx, DefaultTenantID)
	if err == nil && existing != nil {
		if conf.GoAppEnvironment != configuration.Production {
			current := strings.ToLower(strings.TrimSpace(existing.Domain()))
			if current != desiredDomain {
				existing.SetDomain(desiredDomain)
				if _, err := tenantRepository.Update(ctx, existing); err != nil {
					logger.Errorf("Failed to update default tenant domain: %v", err)
					return err
				}
				logger.Infof("Updated default tenant domain to %s", desiredDomain)
			}
		}
		logger.Infof("Default tenant already exists")
		return nil
	}

	logger.Infof("Creating default tenant")
	if _, err := tenantRepository.Create(ctx, defaultTenant); err != nil {
		logger.Errorf("Failed to create default tenant: %v", err)
		return err
	}
	return nil
}
