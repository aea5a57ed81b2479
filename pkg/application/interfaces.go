package application

import (
	"context"
	"embed"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
)

// Controller registers a set of routes under a unique key.
type Controller interface {
	Register(r *mux.Router)
	Key() string
}

// Module wires its services, controllers and migrations into the application.
type Module interface {
	Name() string
	Register(app Application) error
}

type SeedFunc func(ctx context.Context, app Application) error

type Seeder interface {
	Seed(ctx context.Context, app Application) error
	Register(seedFuncs ...SeedFunc)
}

type MigrationManager interface {
	RegisterSchema(fsys ...*embed.FS)
	Run() error
	Rollback() error
}

// TokenAuthenticator resolves an API token to its user. The core module
// registers its auth service here so transport middleware can stay
// decoupled from module internals.
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, token string) (user.User, error)
}

type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Middleware() []mux.MiddlewareFunc
	Controllers() []Controller
	Websocket() Huber
	Migrations() MigrationManager
	Authenticator() TokenAuthenticator

	RegisterAuthenticator(auth TokenAuthenticator)
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}
