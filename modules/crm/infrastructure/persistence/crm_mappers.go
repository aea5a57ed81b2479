package persistence

import (
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/infrastructure/persistence/models"
)

func toDomainRecord(dbRecord *models.Record) (record.Record, error) {
	id, err := uuid.Parse(dbRecord.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse record id")
	}
	tenantID, err := uuid.Parse(dbRecord.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "parse tenant id")
	}

	fields := make(map[string]any)
	if len(dbRecord.Fields) > 0 {
		if err := json.Unmarshal(dbRecord.Fields, &fields); err != nil {
			return nil, errors.Wrap(err, "decode record fields")
		}
	}

	opts := []record.Option{
		record.WithID(id),
		record.WithTags(dbRecord.Tags),
		record.WithIsTest(dbRecord.IsTest),
		record.WithCreatedAt(dbRecord.CreatedAt),
		record.WithUpdatedAt(dbRecord.UpdatedAt),
	}
	if dbRecord.Assignee.Valid {
		opts = append(opts, record.WithAssignee(dbRecord.Assignee.String))
	}
	if dbRecord.AccountID.Valid {
		accountID, err := uuid.Parse(dbRecord.AccountID.String)
		if err != nil {
			return nil, errors.Wrap(err, "parse account id")
		}
		opts = append(opts, record.WithAccountID(&accountID))
	}

	return record.New(tenantID, dbRecord.Entity, fields, opts...), nil
}

func toDBRecord(entity record.Record) (*models.Record, error) {
	fields, err := json.Marshal(entity.Fields())
	if err != nil {
		return nil, errors.Wrap(err, "encode record fields")
	}

	dbRecord := &models.Record{
		ID:        entity.ID().String(),
		TenantID:  entity.TenantID().String(),
		Entity:    entity.Entity(),
		Fields:    fields,
		Tags:      entity.Tags(),
		Assignee:  nullString(entity.Assignee()),
		IsTest:    entity.IsTest(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
	if accountID := entity.AccountID(); accountID != nil {
		dbRecord.AccountID = sql.NullString{String: accountID.String(), Valid: true}
	}
	return dbRecord, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
