package core

import (
	"embed"

	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/modules/core/presentation/controllers"
	"github.com/meridianhq/meridian-sdk/modules/core/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
)

//go:embed infrastructure/persistence/schema/*.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&MigrationFiles)

	userRepo := persistence.NewUserRepository()
	tenantRepo := persistence.NewTenantRepository()

	authService := services.NewAuthService(userRepo, app.EventPublisher())

	app.RegisterServices(
		authService,
		services.NewUserService(userRepo, app.EventPublisher()),
		services.NewTenantService(tenantRepo),
	)
	app.RegisterAuthenticator(authService)

	app.RegisterControllers(
		controllers.NewHealthController(app),
		controllers.NewAuthAPIController(app),
		controllers.NewUsersAPIController(app),
		controllers.NewTenantsAPIController(app),
		controllers.NewWebSocketController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "core"
}
