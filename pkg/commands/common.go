package commands

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian-sdk/modules"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
)

// newApplication builds a headless application for one-shot commands:
// modules loaded, no websocket hub, no HTTP stack.
func newApplication(mods ...application.Module) (application.Application, *pgxpool.Pool, error) {
	conf := configuration.Use()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to database")
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	if err := modules.Load(app, mods...); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "load modules")
	}
	return app, pool, nil
}
