package authlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthenticationLog is one login attempt, successful or not. Failed
// attempts with a bad password still name the account; UserID is optional
// because the account may since be gone.
type AuthenticationLog struct {
	ID        uint
	TenantID  uuid.UUID
	UserID    *uint
	Email     string
	Success   bool
	IP        string
	UserAgent string
	CreatedAt time.Time
}

type FindParams struct {
	UserID  *uint
	Email   string
	Success *bool
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*AuthenticationLog, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, log *AuthenticationLog) error
}
