package persistence_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/itf"
)

func TestRecordRepository_CreateAndGet(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	repo := persistence.NewRecordRepository()

	created, err := repo.Create(env.Ctx, record.New(
		env.TenantID(),
		"contacts",
		map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
		record.WithTags([]string{"vip", "engineering"}),
		record.WithAssignee("Grace Hopper"),
	))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID())

	got, err := repo.GetByID(env.Ctx, env.TenantID(), created.ID())
	require.NoError(t, err)
	require.Equal(t, "contacts", got.Entity())
	require.Equal(t, "Ada Lovelace", got.Fields()["name"])
	require.Equal(t, []string{"vip", "engineering"}, got.Tags())
	require.Equal(t, "Grace Hopper", got.Assignee())
	require.False(t, got.IsTest())

	_, err = repo.GetByID(env.Ctx, env.TenantID(), uuid.New())
	require.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecordRepository_FindScopesTenantEntityAndTestRows(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	repo := persistence.NewRecordRepository()

	otherTenant := uuid.New()
	_, err := env.Tx.Exec(env.Ctx,
		"INSERT INTO tenants (id, name) VALUES ($1, $2)", otherTenant, "Other Tenant")
	require.NoError(t, err)

	seed := []record.Record{
		record.New(env.TenantID(), "leads", map[string]any{"name": "Lead A", "status": "new"}),
		record.New(env.TenantID(), "leads", map[string]any{"name": "Lead B", "status": "new"},
			record.WithAssignee("Grace Hopper")),
		record.New(env.TenantID(), "leads", map[string]any{"name": "Smoke"},
			record.WithIsTest(true)),
		record.New(env.TenantID(), "contacts", map[string]any{"name": "Not a lead"}),
		record.New(otherTenant, "leads", map[string]any{"name": "Foreign"}),
	}
	for _, rec := range seed {
		_, err := repo.Create(env.Ctx, rec)
		require.NoError(t, err)
	}

	found, err := repo.Find(env.Ctx, &record.FindParams{
		Filter: record.Filter{TenantID: env.TenantID(), Entity: "leads"},
	})
	require.NoError(t, err)
	require.Len(t, found, 2, "test rows, other entities and other tenants stay out")

	withTest, err := repo.Find(env.Ctx, &record.FindParams{
		Filter: record.Filter{TenantID: env.TenantID(), Entity: "leads", IncludeTest: true},
	})
	require.NoError(t, err)
	require.Len(t, withTest, 3)

	assignee := "Grace Hopper"
	assigned, err := repo.Find(env.Ctx, &record.FindParams{
		Filter: record.Filter{TenantID: env.TenantID(), Entity: "leads", Assignee: &assignee},
	})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, "Lead B", assigned[0].Fields()["name"])

	unassigned, err := repo.Find(env.Ctx, &record.FindParams{
		Filter: record.Filter{TenantID: env.TenantID(), Entity: "leads", Unassigned: true},
	})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	require.Equal(t, "Lead A", unassigned[0].Fields()["name"])

	count, err := repo.Count(env.Ctx, record.Filter{TenantID: env.TenantID(), Entity: "leads"})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestRecordRepository_CountByFacet(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	repo := persistence.NewRecordRepository()

	statuses := []string{"new", "new", "qualified"}
	for _, status := range statuses {
		_, err := repo.Create(env.Ctx, record.New(
			env.TenantID(), "leads", map[string]any{"name": "L", "status": status},
		))
		require.NoError(t, err)
	}
	_, err := repo.Create(env.Ctx, record.New(
		env.TenantID(), "leads", map[string]any{"name": "No status"},
	))
	require.NoError(t, err)

	counts, err := repo.CountByFacet(env.Ctx,
		record.Filter{TenantID: env.TenantID(), Entity: "leads"}, "status")
	require.NoError(t, err)

	byValue := map[string]int64{}
	for _, fc := range counts {
		byValue[fc.Value] = fc.Count
	}
	require.Equal(t, int64(2), byValue["new"])
	require.Equal(t, int64(1), byValue["qualified"])
	require.Equal(t, int64(1), byValue[""], "records without the field land in the empty bucket")
}

func TestRecordRepository_UpdateAndDelete(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	repo := persistence.NewRecordRepository()

	created, err := repo.Create(env.Ctx, record.New(
		env.TenantID(), "opportunities", map[string]any{"name": "Deal", "stage": "open"},
	))
	require.NoError(t, err)

	updated, err := repo.Update(env.Ctx, created.
		MergeFields(map[string]any{"stage": "won"}).
		SetTags([]string{"closed"}).
		SetAssignee("Grace Hopper"))
	require.NoError(t, err)
	require.Equal(t, "won", updated.Fields()["stage"])
	require.Equal(t, "Deal", updated.Fields()["name"], "merge keeps untouched keys")
	require.Equal(t, []string{"closed"}, updated.Tags())

	require.NoError(t, repo.Delete(env.Ctx, env.TenantID(), created.ID()))
	err = repo.Delete(env.Ctx, env.TenantID(), created.ID())
	require.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecordRepository_CreateManyAndLinkLookup(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	repo := persistence.NewRecordRepository()

	account, err := repo.Create(env.Ctx, record.New(
		env.TenantID(), "accounts", map[string]any{"name": "Globex Corporation"},
	))
	require.NoError(t, err)

	batch := []record.Record{
		record.New(env.TenantID(), "contacts", map[string]any{"name": "C1"},
			record.WithAccountID(ptr(account.ID()))),
		record.New(env.TenantID(), "contacts", map[string]any{"name": "C2"}),
	}
	inserted, err := repo.CreateMany(env.Ctx, batch)
	require.NoError(t, err)
	require.Len(t, inserted, 2)

	count, err := repo.Count(env.Ctx, record.Filter{TenantID: env.TenantID(), Entity: "contacts"})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	linked, err := repo.GetByID(env.Ctx, env.TenantID(), batch[0].ID())
	require.NoError(t, err)
	require.NotNil(t, linked.AccountID())
	require.Equal(t, account.ID(), *linked.AccountID())

	id, err := repo.FindAccountIDByName(env.Ctx, env.TenantID(), "globex corporation")
	require.NoError(t, err)
	require.Equal(t, account.ID(), id, "account lookup is case insensitive")

	_, err = repo.FindAccountIDByName(env.Ctx, env.TenantID(), "missing")
	require.ErrorIs(t, err, record.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
