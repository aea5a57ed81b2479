package persistence

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

// UserAssigneeResolver resolves an employee-scope selection to the canonical
// assignee key. A selection may be a display name or already an email; both
// resolve through the users table so stale display names cannot leak into
// filters as-is.
type UserAssigneeResolver struct{}

func NewUserAssigneeResolver() *UserAssigneeResolver {
	return &UserAssigneeResolver{}
}

// ResolveAssignee returns the matching user's email, or "" when nothing in
// the tenant matches. Callers fall back to the raw selection on "".
func (r *UserAssigneeResolver) ResolveAssignee(ctx context.Context, tenantID uuid.UUID, selection string) (string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to get transaction")
	}

	var email string
	err = tx.QueryRow(ctx, `
        SELECT u.email FROM users u
        WHERE u.tenant_id = $1 AND (LOWER(u.display_name) = LOWER($2) OR u.email = $3)
        ORDER BY u.id
        LIMIT 1`,
		tenantID.String(),
		strings.TrimSpace(selection),
		strings.ToLower(strings.TrimSpace(selection)),
	).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve assignee")
	}
	return email, nil
}
