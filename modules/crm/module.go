package crm

import (
	"embed"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/handlers"
	"github.com/meridianhq/meridian-sdk/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/modules/crm/presentation/controllers"
	"github.com/meridianhq/meridian-sdk/modules/crm/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
)

//go:embed infrastructure/persistence/schema/*.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&MigrationFiles)

	conf := configuration.Use()
	cache, err := querycache.New(conf.CRM.QueryCacheSize, conf.CRM.QueryCacheTTL)
	if err != nil {
		return err
	}

	repo := persistence.NewRecordRepository()
	cat := catalog.Default()
	resolver := persistence.NewUserAssigneeResolver()
	bus := app.EventPublisher()

	app.RegisterServices(
		services.NewRecordService(repo, cat, cache, resolver, bus),
		services.NewRecordQueryService(repo, cat, cache, resolver, services.QueryConfig{
			FetchLimit:      conf.CRM.MaxFetchLimit,
			DefaultPageSize: conf.PageSize,
			MaxPageSize:     conf.MaxPageSize,
		}),
		services.NewBulkService(repo, cat, cache, resolver, bus, services.BulkConfig{
			BatchSize:  conf.CRM.BulkBatchSize,
			FetchLimit: conf.CRM.MaxFetchLimit,
		}),
		services.NewImportService(repo, cat, cache, resolver, bus, conf.CRM.ImportBatchSize),
		services.NewExportService(repo, cat, cache, resolver, conf.CRM.MaxFetchLimit),
		services.NewAIService(repo, cat, conf.OpenAIKey),
	)

	handlers.RegisterRecordChangeNotifier(app)

	app.RegisterControllers(
		controllers.NewRecordsAPIController(app),
		controllers.NewAdminAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "crm"
}
