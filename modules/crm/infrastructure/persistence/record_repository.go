package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
)

const (
	recordFindQuery = `
        SELECT
            r.id,
            r.tenant_id,
            r.entity,
            r.fields,
            r.tags,
            r.assignee,
            r.account_id,
            r.is_test,
            r.created_at,
            r.updated_at
        FROM crm_records r`

	recordCountQuery = `SELECT COUNT(r.id) FROM crm_records r`

	recordDeleteQuery = `DELETE FROM crm_records WHERE id = $1 AND tenant_id = $2`

	recordInsertPrefix = `
        INSERT INTO crm_records
            (id, tenant_id, entity, fields, tags, assignee, account_id, is_test, created_at, updated_at)
        VALUES`
)

type PgRecordRepository struct{}

func NewRecordRepository() record.Repository {
	return &PgRecordRepository{}
}

// buildRecordFilters renders a record.Filter into WHERE conditions. The
// tenant constraint is mandatory; the scope builder never hands out an
// unscoped filter and neither does this layer.
func buildRecordFilters(filter record.Filter) ([]string, []interface{}, error) {
	if filter.TenantID == uuid.Nil {
		return nil, nil, errors.New("record filter without tenant")
	}
	if filter.Entity == "" {
		return nil, nil, errors.New("record filter without entity")
	}

	where := []string{"r.tenant_id = $1", "r.entity = $2"}
	args := []interface{}{filter.TenantID.String(), filter.Entity}

	if filter.Assignee != nil {
		where = append(where, fmt.Sprintf("r.assignee = $%d", len(args)+1))
		args = append(args, *filter.Assignee)
	}
	if filter.Unassigned {
		where = append(where, "(r.assignee IS NULL OR r.assignee = '')")
	}
	if !filter.IncludeTest {
		where = append(where, "r.is_test = FALSE")
	}
	if len(filter.IDs) > 0 {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			ids = append(ids, id.String())
		}
		where = append(where, fmt.Sprintf("r.id = ANY($%d::uuid[])", len(args)+1))
		args = append(args, ids)
	}

	return where, args, nil
}

// Find returns the filtered set ordered newest first. Refinement, sorting,
// and pagination happen in memory above this layer.
func (g *PgRecordRepository) Find(ctx context.Context, params *record.FindParams) ([]record.Record, error) {
	where, args, err := buildRecordFilters(params.Filter)
	if err != nil {
		return nil, err
	}

	query := repo.Join(
		recordFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY r.created_at DESC, r.id",
		repo.FormatLimitOffset(params.Limit, 0),
	)
	records, err := g.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find records")
	}
	return records, nil
}

func (g *PgRecordRepository) Count(ctx context.Context, filter record.Filter) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	where, args, err := buildRecordFilters(filter)
	if err != nil {
		return 0, err
	}

	query := repo.Join(recordCountQuery, repo.JoinWhere(where...))

	var count int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count records")
	}
	return count, nil
}

// CountByFacet groups the filtered set by a field inside the JSON document.
// Records missing the field land in the "" bucket.
func (g *PgRecordRepository) CountByFacet(ctx context.Context, filter record.Filter, field string) ([]record.FacetCount, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	where, args, err := buildRecordFilters(filter)
	if err != nil {
		return nil, err
	}

	facetArg := len(args) + 1
	query := repo.Join(
		fmt.Sprintf("SELECT COALESCE(r.fields->>$%d, ''), COUNT(r.id) FROM crm_records r", facetArg),
		repo.JoinWhere(where...),
		"GROUP BY 1 ORDER BY 2 DESC, 1",
	)
	args = append(args, field)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count by facet")
	}
	defer rows.Close()

	var counts []record.FacetCount
	for rows.Next() {
		var fc record.FacetCount
		if err := rows.Scan(&fc.Value, &fc.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan facet count")
		}
		counts = append(counts, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return counts, nil
}

func (g *PgRecordRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (record.Record, error) {
	records, err := g.queryRecords(
		ctx,
		recordFindQuery+" WHERE r.tenant_id = $1 AND r.id = $2",
		tenantID.String(), id.String(),
	)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to query record with id: %s", id))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}
	return records[0], nil
}

// FindAccountIDByName resolves an account record by its name field, case
// insensitively, within a tenant. Used for contact-to-account linking on
// import.
func (g *PgRecordRepository) FindAccountIDByName(ctx context.Context, tenantID uuid.UUID, name string) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to get transaction")
	}

	var raw string
	err = tx.QueryRow(ctx, `
        SELECT r.id FROM crm_records r
        WHERE r.tenant_id = $1 AND r.entity = 'accounts' AND LOWER(r.fields->>'name') = LOWER($2)
        ORDER BY r.created_at
        LIMIT 1`,
		tenantID.String(), name,
	).Scan(&raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("account %q: %w", name, record.ErrNotFound)
	}
	return uuid.Parse(raw)
}

func (g *PgRecordRepository) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbRecord, err := toDBRecord(rec)
	if err != nil {
		return nil, err
	}

	q := repo.Insert("crm_records", recordInsertFields, "id")
	if err := tx.QueryRow(ctx, q, recordInsertValues(dbRecord)...).Scan(&dbRecord.ID); err != nil {
		return nil, errors.Wrap(err, "failed to insert record")
	}

	return g.GetByID(ctx, rec.TenantID(), rec.ID())
}

// CreateMany inserts a whole import batch in one statement.
func (g *PgRecordRepository) CreateMany(ctx context.Context, recs []record.Record) ([]record.Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows := make([][]interface{}, 0, len(recs))
	for _, rec := range recs {
		dbRecord, err := toDBRecord(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, recordInsertValues(dbRecord))
	}

	query, args := repo.BatchInsertQueryN(recordInsertPrefix, rows)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to insert record batch")
	}
	return recs, nil
}

func (g *PgRecordRepository) Update(ctx context.Context, rec record.Record) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	dbRecord, err := toDBRecord(rec)
	if err != nil {
		return nil, err
	}

	fields := []string{"fields", "tags", "assignee", "account_id", "is_test", "updated_at"}
	values := []interface{}{
		dbRecord.Fields,
		dbRecord.Tags,
		dbRecord.Assignee,
		dbRecord.AccountID,
		dbRecord.IsTest,
		dbRecord.UpdatedAt,
	}
	values = append(values, dbRecord.ID, dbRecord.TenantID)

	q := repo.Update("crm_records", fields, fmt.Sprintf("id = $%d", len(values)-1), fmt.Sprintf("tenant_id = $%d", len(values)))
	tag, err := tx.Exec(ctx, q, values...)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to update record with id: %s", dbRecord.ID))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("id: %s: %w", dbRecord.ID, record.ErrNotFound)
	}

	return g.GetByID(ctx, rec.TenantID(), rec.ID())
}

func (g *PgRecordRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	tag, err := tx.Exec(ctx, recordDeleteQuery, id.String(), tenantID.String())
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to delete record with id: %s", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}
	return nil
}

var recordInsertFields = []string{
	"id",
	"tenant_id",
	"entity",
	"fields",
	"tags",
	"assignee",
	"account_id",
	"is_test",
	"created_at",
	"updated_at",
}

func recordInsertValues(dbRecord *models.Record) []interface{} {
	return []interface{}{
		dbRecord.ID,
		dbRecord.TenantID,
		dbRecord.Entity,
		dbRecord.Fields,
		dbRecord.Tags,
		dbRecord.Assignee,
		dbRecord.AccountID,
		dbRecord.IsTest,
		dbRecord.CreatedAt,
		dbRecord.UpdatedAt,
	}
}

func (g *PgRecordRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var dbRecords []*models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(
			&r.ID,
			&r.TenantID,
			&r.Entity,
			&r.Fields,
			&r.Tags,
			&r.Assignee,
			&r.AccountID,
			&r.IsTest,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan record row")
		}
		dbRecords = append(dbRecords, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	entities := make([]record.Record, 0, len(dbRecords))
	for _, r := range dbRecords {
		entity, err := toDomainRecord(r)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to convert record ID: %s to domain entity", r.ID))
		}
		entities = append(entities, entity)
	}

	return entities, nil
}
