package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
)

var usersAuthzObject = authz.ObjectName("core", "users")

func authorizeUsers(ctx context.Context, action string) error {
	return authorizeCore(ctx, usersAuthzObject, action)
}

type UserService struct {
	repo      user.Repository
	publisher eventbus.EventBus
}

func NewUserService(repo user.Repository, publisher eventbus.EventBus) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) Count(ctx context.Context, params *user.FindParams) (int64, error) {
	return s.repo.Count(ctx, params)
}

func (s *UserService) GetByID(ctx context.Context, id uint) (user.User, error) {
	if err := authorizeUsers(ctx, "view"); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByTenant(ctx context.Context, tenantID uuid.UUID) ([]user.User, error) {
	if err := authorizeUsers(ctx, "list"); err != nil {
		return nil, err
	}
	return s.repo.GetByTenant(ctx, tenantID)
}

func (s *UserService) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, error) {
	if err := authorizeUsers(ctx, "list"); err != nil {
		return nil, err
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *UserService) GetPaginatedWithTotal(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	if err := authorizeUsers(ctx, "list"); err != nil {
		return nil, 0, err
	}
	us, err := s.repo.GetPaginated(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return us, total, nil
}

func (s *UserService) Create(ctx context.Context, data user.User) (user.User, error) {
	if err := authorizeUsers(ctx, "create"); err != nil {
		return nil, err
	}

	createdUser, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.Create(txCtx, data)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(&user.CreatedEvent{Result: createdUser})
	return createdUser, nil
}

func (s *UserService) Update(ctx context.Context, data user.User) (user.User, error) {
	if err := authorizeUsers(ctx, "update"); err != nil {
		return nil, err
	}

	updatedUser, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.Update(txCtx, data)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(&user.UpdatedEvent{Result: updatedUser})
	return updatedUser, nil
}

func (s *UserService) RotateAPIToken(ctx context.Context, id uint) (user.User, error) {
	if err := authorizeUsers(ctx, "update"); err != nil {
		return nil, err
	}

	entity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rotated, err := entity.RotateAPIToken()
	if err != nil {
		return nil, err
	}

	updatedUser, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.Update(txCtx, rotated)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(&user.TokenRotatedEvent{Result: updatedUser})
	return updatedUser, nil
}

func (s *UserService) Delete(ctx context.Context, id uint) (user.User, error) {
	if err := authorizeUsers(ctx, "delete"); err != nil {
		return nil, err
	}

	entity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(&user.DeletedEvent{Result: entity})
	return entity, nil
}
