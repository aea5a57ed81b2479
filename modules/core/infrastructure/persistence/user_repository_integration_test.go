package persistence_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules"
	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/itf"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

func TestUserRepository_CreateAndLookups(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	userRepo := persistence.NewUserRepository()

	created, err := userRepo.Create(env.Ctx, user.New(
		env.TenantID(),
		"grace@example.com",
		user.RoleManager,
		user.WithDisplayName("Grace Hopper"),
		user.WithAPIToken("tok-grace-1234"),
	))
	require.NoError(t, err)
	require.NotZero(t, created.ID())

	byEmail, err := userRepo.GetByEmail(env.Ctx, "grace@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID(), byEmail.ID())
	require.Equal(t, user.RoleManager, byEmail.Role())

	byToken, err := userRepo.GetByAPIToken(env.Ctx, "tok-grace-1234")
	require.NoError(t, err)
	require.Equal(t, created.ID(), byToken.ID())

	_, err = userRepo.GetByEmail(env.Ctx, "nobody@example.com")
	require.ErrorIs(t, err, persistence.ErrUserNotFound)
}

func TestUserRepository_DuplicateEmailIsConflict(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	userRepo := persistence.NewUserRepository()

	_, err := userRepo.Create(env.Ctx, user.New(env.TenantID(), "dup@example.com", user.RoleAgent))
	require.NoError(t, err)

	_, err = userRepo.Create(env.Ctx, user.New(env.TenantID(), "dup@example.com", user.RoleAgent))
	require.ErrorIs(t, err, persistence.ErrEmailTaken)
}

func TestUserRepository_PaginatedSearchAndRoleFilter(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		Build(t)
	userRepo := persistence.NewUserRepository()

	seed := []struct {
		email string
		name  string
		role  user.Role
	}{
		{"ada@example.com", "Ada Lovelace", user.RoleAdmin},
		{"grace@example.com", "Grace Hopper", user.RoleManager},
		{"alan@example.com", "Alan Turing", user.RoleAgent},
	}
	for _, s := range seed {
		_, err := userRepo.Create(env.Ctx, user.New(
			env.TenantID(), s.email, s.role, user.WithDisplayName(s.name),
		))
		require.NoError(t, err)
	}

	found, err := userRepo.GetPaginated(env.Ctx, &user.FindParams{Search: "lovelace", Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "ada@example.com", found[0].Email())

	managers, err := userRepo.GetPaginated(env.Ctx, &user.FindParams{
		Limit: 10,
		Filters: []user.Filter{{
			Column: user.FieldRole,
			Filter: repo.Eq(string(user.RoleManager)),
		}},
	})
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.Equal(t, "grace@example.com", managers[0].Email())

	total, err := userRepo.Count(env.Ctx, &user.FindParams{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
}
