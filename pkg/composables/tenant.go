package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/pkg/constants"
)

var (
	ErrNoTenantIDFound = errors.New("no tenant id found in context")
)

// WithTenantID returns a new context carrying the acting tenant.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

// UseTenantID returns the acting tenant from the context.
func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, ErrNoTenantIDFound
	}
	return tenantID, nil
}
