package persistence

import (
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/modules/audit/infrastructure/persistence/models"
)

func toDBChangeLog(log *changelog.ChangeLog) *models.ChangeLog {
	return &models.ChangeLog{
		ID:        log.ID,
		TenantID:  log.TenantID.String(),
		UserID:    log.UserID,
		Entity:    log.Entity,
		RecordID:  log.RecordID.String(),
		Action:    log.Action,
		Before:    log.Before,
		After:     log.After,
		Diff:      log.Diff,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: log.CreatedAt,
	}
}

func toDomainChangeLog(row *models.ChangeLog) *changelog.ChangeLog {
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		tenantID = uuid.Nil
	}
	recordID, err := uuid.Parse(row.RecordID)
	if err != nil {
		recordID = uuid.Nil
	}

	return &changelog.ChangeLog{
		ID:        row.ID,
		TenantID:  tenantID,
		UserID:    row.UserID,
		Entity:    row.Entity,
		RecordID:  recordID,
		Action:    row.Action,
		Before:    row.Before,
		After:     row.After,
		Diff:      row.Diff,
		IP:        row.IP,
		UserAgent: row.UserAgent,
		CreatedAt: row.CreatedAt,
	}
}

func toDBAuthenticationLog(log *authlog.AuthenticationLog) *models.AuthenticationLog {
	return &models.AuthenticationLog{
		ID:        log.ID,
		TenantID:  log.TenantID.String(),
		UserID:    log.UserID,
		Email:     log.Email,
		Success:   log.Success,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: log.CreatedAt,
	}
}

func toDomainAuthenticationLog(row *models.AuthenticationLog) *authlog.AuthenticationLog {
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		tenantID = uuid.Nil
	}

	return &authlog.AuthenticationLog{
		ID:        row.ID,
		TenantID:  tenantID,
		UserID:    row.UserID,
		Email:     row.Email,
		Success:   row.Success,
		IP:        row.IP,
		UserAgent: row.UserAgent,
		CreatedAt: row.CreatedAt,
	}
}
