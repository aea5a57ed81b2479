package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/infrastructure/persistence/models"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

type AuthenticationLogRepository struct{}

func NewAuthenticationLogRepository() authlog.Repository {
	return &AuthenticationLogRepository{}
}

func (r *AuthenticationLogRepository) List(
	ctx context.Context,
	params *authlog.FindParams,
) ([]*authlog.AuthenticationLog, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildAuthLogFilters(params, tenantID)
	query := `
		SELECT id, tenant_id, user_id, email, success, ip, user_agent, created_at
		FROM authentication_logs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*authlog.AuthenticationLog
	for rows.Next() {
		var row models.AuthenticationLog
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.UserID,
			&row.Email,
			&row.Success,
			&row.IP,
			&row.UserAgent,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, toDomainAuthenticationLog(&row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *AuthenticationLogRepository) Count(ctx context.Context, params *authlog.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildAuthLogFilters(params, tenantID)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM authentication_logs
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AuthenticationLogRepository) Create(ctx context.Context, log *authlog.AuthenticationLog) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	if log.TenantID == uuid.Nil {
		log.TenantID = tenantID
	}
	dbRow := toDBAuthenticationLog(log)
	if dbRow.CreatedAt.IsZero() {
		dbRow.CreatedAt = time.Now()
	}

	return tx.QueryRow(
		ctx,
		`INSERT INTO authentication_logs (tenant_id, user_id, email, success, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		dbRow.TenantID,
		dbRow.UserID,
		dbRow.Email,
		dbRow.Success,
		dbRow.IP,
		dbRow.UserAgent,
		dbRow.CreatedAt,
	).Scan(&log.ID, &log.CreatedAt)
}

func buildAuthLogFilters(params *authlog.FindParams, tenantID uuid.UUID) ([]string, []interface{}) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	argPos := 2
	if params == nil {
		return where, args
	}

	if params.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *params.UserID)
		argPos++
	}
	if email := strings.TrimSpace(params.Email); email != "" {
		where = append(where, fmt.Sprintf("email ILIKE $%d", argPos))
		args = append(args, "%"+email+"%")
		argPos++
	}
	if params.Success != nil {
		where = append(where, fmt.Sprintf("success = $%d", argPos))
		args = append(args, *params.Success)
		argPos++
	}
	if params.From != nil && !params.From.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil && !params.To.IsZero() {
		where = append(where, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *params.To)
	}
	return where, args
}
