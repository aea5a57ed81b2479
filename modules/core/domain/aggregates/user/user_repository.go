package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

type Field int

const (
	FieldEmail Field = iota
	FieldDisplayName
	FieldRole
	FieldLastLogin
	FieldCreatedAt
	FieldUpdatedAt
)

type SortBy = repo.SortBy[Field]

type Filter struct {
	Column Field
	Filter repo.Expr
}

type FindParams struct {
	Limit   int
	Offset  int
	Search  string
	SortBy  SortBy
	Filters []Filter
}

type Repository interface {
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]User, error)
	GetByID(ctx context.Context, id uint) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByAPIToken(ctx context.Context, token string) (User, error)
	GetByTenant(ctx context.Context, tenantID uuid.UUID) ([]User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id uint) error
}
