package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence/models"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")
)

// isUniqueViolation matches the postgres unique_violation error class.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const (
	userFindQuery = `
        SELECT
            u.id,
            u.tenant_id,
            u.email,
            u.display_name,
            u.role,
            u.password,
            u.api_token,
            u.last_login,
            u.created_at,
            u.updated_at
        FROM users u`

	userCountQuery = `SELECT COUNT(u.id) FROM users u`

	userDeleteQuery = `DELETE FROM users WHERE id = $1 AND tenant_id = $2`
)

type PgUserRepository struct {
	fieldMap map[user.Field]string
}

func NewUserRepository() user.Repository {
	return &PgUserRepository{
		fieldMap: map[user.Field]string{
			user.FieldEmail:       "u.email",
			user.FieldDisplayName: "u.display_name",
			user.FieldRole:        "u.role",
			user.FieldLastLogin:   "u.last_login",
			user.FieldCreatedAt:   "u.created_at",
			user.FieldUpdatedAt:   "u.updated_at",
		},
	}
}

func (g *PgUserRepository) buildUserFilters(ctx context.Context, params *user.FindParams) ([]string, []interface{}, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get tenant from context")
	}

	where := []string{"u.tenant_id = $1"}
	args := []interface{}{tenantID.String()}

	for _, filter := range params.Filters {
		column, ok := g.fieldMap[filter.Column]
		if !ok {
			return nil, nil, errors.Wrap(fmt.Errorf("unknown filter field: %v", filter.Column), "invalid filter")
		}

		where = append(where, filter.Filter.String(column, len(args)+1))
		args = append(args, filter.Filter.Value()...)
	}

	if params.Search != "" {
		index := len(args) + 1
		where = append(
			where,
			fmt.Sprintf("(u.email ILIKE $%d OR u.display_name ILIKE $%d)", index, index),
		)
		args = append(args, "%"+params.Search+"%")
	}

	return where, args, nil
}

func (g *PgUserRepository) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, error) {
	where, args, err := g.buildUserFilters(ctx, params)
	if err != nil {
		return nil, err
	}

	query := repo.Join(
		userFindQuery,
		repo.JoinWhere(where...),
		params.SortBy.ToSQL(g.fieldMap),
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	users, err := g.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get paginated users")
	}
	return users, nil
}

func (g *PgUserRepository) Count(ctx context.Context, params *user.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	where, args, err := g.buildUserFilters(ctx, params)
	if err != nil {
		return 0, err
	}

	query := repo.Join(userCountQuery, repo.JoinWhere(where...))

	var count int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return count, nil
}

func (g *PgUserRepository) GetByID(ctx context.Context, id uint) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)

	var users []user.User
	if err == nil {
		users, err = g.queryUsers(ctx, userFindQuery+" WHERE u.id = $1 AND u.tenant_id = $2", id, tenantID.String())
	} else {
		users, err = g.queryUsers(ctx, userFindQuery+" WHERE u.id = $1", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to query user with id: %d", id))
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("id: %d: %w", id, ErrUserNotFound)
	}

	return users[0], nil
}

// GetByEmail resolves a user across tenants. The email column carries a
// global unique constraint, so login does not need a tenant up front.
func (g *PgUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	users, err := g.queryUsers(ctx, userFindQuery+" WHERE u.email = $1", user.CanonicalEmail(email))
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to query user with email: %s", email))
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("email: %s: %w", email, ErrUserNotFound)
	}

	return users[0], nil
}

// GetByAPIToken resolves a user from a bearer token. Runs before any tenant
// is pinned to the request, hence no tenant filter.
func (g *PgUserRepository) GetByAPIToken(ctx context.Context, token string) (user.User, error) {
	users, err := g.queryUsers(ctx, userFindQuery+" WHERE u.api_token = $1", token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user by api token")
	}

	if len(users) == 0 {
		return nil, ErrUserNotFound
	}

	return users[0], nil
}

func (g *PgUserRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) ([]user.User, error) {
	users, err := g.queryUsers(ctx, userFindQuery+" WHERE u.tenant_id = $1 ORDER BY u.id", tenantID.String())
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to query users for tenant: %s", tenantID))
	}
	return users, nil
}

func (g *PgUserRepository) Create(ctx context.Context, data user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbUser := toDBUser(data)

	fields := []string{
		"tenant_id",
		"email",
		"display_name",
		"role",
		"password",
		"api_token",
		"last_login",
		"created_at",
		"updated_at",
	}

	values := []interface{}{
		dbUser.TenantID,
		dbUser.Email,
		dbUser.DisplayName,
		dbUser.Role,
		dbUser.Password,
		dbUser.APIToken,
		dbUser.LastLogin,
		dbUser.CreatedAt,
		dbUser.UpdatedAt,
	}

	q := repo.Insert("users", fields, "id")
	if err := tx.QueryRow(ctx, q, values...).Scan(&dbUser.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "failed to insert user")
	}

	return g.GetByID(ctx, dbUser.ID)
}

func (g *PgUserRepository) Update(ctx context.Context, data user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbUser := toDBUser(data)

	fields := []string{
		"email",
		"display_name",
		"role",
		"api_token",
		"last_login",
		"updated_at",
	}

	values := []interface{}{
		dbUser.Email,
		dbUser.DisplayName,
		dbUser.Role,
		dbUser.APIToken,
		dbUser.LastLogin,
		dbUser.UpdatedAt,
	}

	if dbUser.Password.Valid && dbUser.Password.String != "" {
		fields = append(fields, "password")
		values = append(values, dbUser.Password)
	}

	values = append(values, dbUser.ID, dbUser.TenantID)

	q := repo.Update("users", fields, fmt.Sprintf("id = $%d", len(values)-1), fmt.Sprintf("tenant_id = $%d", len(values)))
	if _, err := tx.Exec(ctx, q, values...); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, fmt.Sprintf("failed to update user with ID: %d", dbUser.ID))
	}

	return g.GetByID(ctx, dbUser.ID)
}

func (g *PgUserRepository) Delete(ctx context.Context, id uint) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get tenant from context")
	}

	if err := g.execQuery(ctx, userDeleteQuery, id, tenantID.String()); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to delete user with ID: %d", id))
	}
	return nil
}

func (g *PgUserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.TenantID,
			&u.Email,
			&u.DisplayName,
			&u.Role,
			&u.Password,
			&u.APIToken,
			&u.LastLogin,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	entities := make([]user.User, 0, len(users))
	for _, u := range users {
		entity, err := toDomainUser(u)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to convert user ID: %d to domain entity", u.ID))
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

func (g *PgUserRepository) execQuery(ctx context.Context, query string, args ...interface{}) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to execute query")
	}
	return nil
}
