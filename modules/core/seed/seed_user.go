package seed

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

type userSeeder struct {
	user user.User
}

// UserSeedFunc is idempotent: an existing account with the same email is
// left untouched.
func UserSeedFunc(usr user.User) application.SeedFunc {
	s := &userSeeder{user: usr}
	return s.CreateUser
}

func (s *userSeeder) CreateUser(ctx context.Context, app application.Application) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get tenant from context")
	}

	userRepository := persistence.NewUserRepository()
	logger := configuration.Use().Logger()

	foundUser, err := userRepository.GetByEmail(ctx, s.user.Email())
	if err != nil && !errors.Is(err, persistence.ErrUserNotFound) {
		return err
	}
	if foundUser != nil {
		logger.Infof("User %s already exists", s.user.Email())
		return nil
	}

	newUser := user.New(
		tenantID,
		s.user.Email(),
		s.user.Role(),
		user.WithDisplayName(s.user.DisplayName()),
		user.WithPasswordHash(s.user.PasswordHash()),
		user.WithAPIToken(s.user.APIToken()),
	)

	logger.Infof("Creating user %s", s.user.Email())
	if _, err := userRepository.Create(ctx, newUser); err != nil {
		return errors.Wrapf(err, "failed to seed user %s", s.user.Email())
	}
	return nil
}
