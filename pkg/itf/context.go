package itf

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

// TestContext is a fluent builder for database-backed test environments.
// Build skips the test when no Postgres server is reachable.
type TestContext struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	tx      pgx.Tx
	app     application.Application
	tenant  *tenant.Tenant
	user    user.User
	modules []application.Module
	dbName  string
}

func NewTestContext() *TestContext {
	return &TestContext{
		ctx:     context.Background(),
		modules: []application.Module{},
	}
}

func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

// WithUser puts the given user into the built context, so service authz
// guards see an authenticated caller.
func (tc *TestContext) WithUser(u user.User) *TestContext {
	tc.user = u
	return tc
}

func (tc *TestContext) WithDBName(tb testing.TB, name string) *TestContext {
	tb.Helper()
	if tc.dbName == "" {
		tc.dbName = name
	}
	return tc
}

// Build provisions a fresh database, loads the modules, runs migrations,
// creates a tenant and opens the transaction every query in the test runs
// in. Cleanup rolls the transaction back and drops the pool.
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()
	requireDatabase(tb)

	if tc.dbName == "" {
		tc.dbName = tb.Name()
	}

	CreateDB(tc.dbName)
	tc.pool = NewPool(DbOpts(tc.dbName))

	app, err := SetupApplication(tc.pool, tc.modules...)
	if err != nil {
		tb.Fatal(err)
	}
	tc.app = app

	testTenant, err := CreateTestTenant(tc.ctx, tc.pool)
	if err != nil {
		tb.Fatal(err)
	}
	tc.tenant = testTenant

	tx, err := tc.pool.Begin(tc.ctx)
	if err != nil {
		tb.Fatal(err)
	}
	tc.tx = tx

	tc.ctx = tc.buildContext()

	tb.Cleanup(func() {
		if err := tx.Rollback(tc.ctx); err != nil && err != pgx.ErrTxClosed {
			tb.Logf("Warning: failed to rollback transaction: %v", err)
		}
		tc.pool.Close()
	})

	return &TestEnvironment{
		Ctx:    tc.ctx,
		Pool:   tc.pool,
		Tx:     tc.tx,
		App:    tc.app,
		Tenant: tc.tenant,
		User:   tc.user,
	}
}

func (tc *TestContext) buildContext() context.Context {
	ctx := tc.ctx
	ctx = composables.WithPool(ctx, tc.pool)
	ctx = composables.WithTx(ctx, tc.tx)
	ctx = composables.WithTenantID(ctx, tc.tenant.ID())
	ctx = composables.WithParams(ctx, DefaultParams())

	if tc.user != nil {
		ctx = composables.WithUser(ctx, tc.user)
	}
	return ctx
}

// TestEnvironment contains all test dependencies.
type TestEnvironment struct {
	Ctx    context.Context
	Pool   *pgxpool.Pool
	Tx     pgx.Tx
	App    application.Application
	Tenant *tenant.Tenant
	User   user.User
}

func (te *TestEnvironment) Service(service interface{}) interface{} {
	return te.App.Service(service)
}

// GetService retrieves and casts a registered service.
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	service := te.App.Service(zero)
	if service == nil {
		return nil
	}
	return service.(*T)
}

func (te *TestEnvironment) TenantID() uuid.UUID {
	return te.Tenant.ID()
}

// WithTx returns a new context bound to the test transaction.
func (te *TestEnvironment) WithTx(ctx context.Context) context.Context {
	return composables.WithTx(ctx, te.Tx)
}
