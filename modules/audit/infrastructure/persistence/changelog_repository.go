package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/modules/audit/infrastructure/persistence/models"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

type ChangeLogRepository struct{}

func NewChangeLogRepository() changelog.Repository {
	return &ChangeLogRepository{}
}

func (r *ChangeLogRepository) List(
	ctx context.Context,
	params *changelog.FindParams,
) ([]*changelog.ChangeLog, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildChangeLogFilters(params, tenantID)
	query := `
		SELECT id, tenant_id, user_id, entity, record_id, action, before, after, diff, ip, user_agent, created_at
		FROM change_logs
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

	var results []*changelog.ChangeLog
	for rows.Next() {
		var row models.ChangeLog
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.UserID,
			&row.Entity,
			&row.RecordID,
			&row.Action,
			&row.Before,
			&row.After,
			&row.Diff,
			&row.IP,
			&row.UserAgent,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, toDomainChangeLog(&row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ChangeLogRepository) Count(ctx context.Context, params *changelog.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildChangeLogFilters(params, tenantID)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM change_logs
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChangeLogRepository) Create(ctx context.Context, log *changelog.ChangeLog) error {
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
	dbRow := toDBChangeLog(log)
	if dbRow.CreatedAt.IsZero() {
		dbRow.CreatedAt = time.Now()
	}

	return tx.QueryRow(
		ctx,
		`INSERT INTO change_logs (tenant_id, user_id, entity, record_id, action, before, after, diff, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		dbRow.TenantID,
		dbRow.UserID,
		dbRow.Entity,
		dbRow.RecordID,
		dbRow.Action,
		dbRow.Before,
		dbRow.After,
		dbRow.Diff,
		dbRow.IP,
		dbRow.UserAgent,
		dbRow.CreatedAt,
	).Scan(&log.ID, &log.CreatedAt)
}

func buildChangeLogFilters(params *changelog.FindParams, tenantID uuid.UUID) ([]string, []interface{}) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	argPos := 2
	if params == nil {
		return where, args
	}

	if entity := strings.TrimSpace(params.Entity); entity != "" {
		where = append(where, fmt.Sprintf("entity = $%d", argPos))
		args = append(args, entity)
		argPos++
	}
	if params.RecordID != nil {
		where = append(where, fmt.Sprintf("record_id = $%d", argPos))
		args = append(args, *params.RecordID)
		argPos++
	}
	if params.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *params.UserID)
		argPos++
	}
	if action := strings.TrimSpace(params.Action); action != "" {
		where = append(where, fmt.Sprintf("action = $%d", argPos))
		args = append(args, action)
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
