package commands

import (
	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/pkg/application"
)

// Migrate applies ("up") or rolls back ("down") the schema embedded in the
// given modules. The server also applies migrations on boot; this keeps
// schema management scriptable without starting it.
func Migrate(direction string, mods ...application.Module) error {
	app, pool, err := newApplication(mods...)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch direction {
	case "up":
		return app.Migrations().Run()
	case "down":
		return app.Migrations().Rollback()
	default:
		return errors.Errorf("unknown migration direction %q, want up or down", direction)
	}
}
