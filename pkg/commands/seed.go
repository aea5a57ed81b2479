package commands

import (
	"context"
	"os"

	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	coreseed "github.com/meridianhq/meridian-sdk/modules/core/seed"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

// SeedDatabase bootstraps a fresh deployment: migrations, the default
// tenant and a superadmin account. The account's email and password come
// from SEED_SUPERADMIN_EMAIL and SEED_SUPERADMIN_PASSWORD; the API token
// is issued on first login. Re-running is a no-op for existing rows.
func SeedDatabase(mods ...application.Module) error {
	conf := configuration.Use()
	ctx := context.Background()

	app, pool, err := newApplication(mods...)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := app.Migrations().Run(); err != nil {
		return errors.Wrap(err, "apply migrations")
	}

	email := os.Getenv("SEED_SUPERADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost"
	}
	password := os.Getenv("SEED_SUPERADMIN_PASSWORD")
	if password == "" {
		return errors.New("SEED_SUPERADMIN_PASSWORD is required")
	}

	admin, err := user.New(
		coreseed.DefaultTenantID,
		email,
		user.RoleSuperadmin,
		user.WithDisplayName("Superadmin"),
	).SetPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash superadmin password")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	seeder := application.NewSeeder()
	seeder.Register(
		coreseed.CreateDefaultTenant,
		coreseed.UserSeedFunc(admin),
	)

	seedCtx := composables.WithTenantID(composables.WithTx(ctx, tx), coreseed.DefaultTenantID)
	if err := seeder.Seed(seedCtx, app); err != nil {
		return errors.Wrap(err, "seed database")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	conf.Logger().Infof("Seeded default tenant %s and superadmin %s", coreseed.DefaultTenantID, email)
	return nil
}
