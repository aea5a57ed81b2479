package audit

import (
	"embed"

	"github.com/meridianhq/meridian-sdk/modules/audit/handlers"
	"github.com/meridianhq/meridian-sdk/modules/audit/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/modules/audit/presentation/controllers"
	"github.com/meridianhq/meridian-sdk/modules/audit/services"
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

	app.RegisterServices(
		services.NewAuditService(
			persistence.NewChangeLogRepository(),
			persistence.NewAuthenticationLogRepository(),
		),
	)

	handlers.RegisterRecordEventHandlers(app)
	handlers.RegisterAuthEventHandlers(app)

	app.RegisterControllers(
		controllers.NewLogsAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "audit"
}
