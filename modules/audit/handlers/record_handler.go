package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/jsondiff"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/modules/audit/services"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

// RecordEventsHandler turns CRM record mutations into change log rows.
// Events carry both document versions, so the handler never reads the
// records back; updates additionally get an RFC 6902 patch between the
// two snapshots.
type RecordEventsHandler struct {
	app     application.Application
	service *services.AuditService
	logger  *logrus.Logger
}

func RegisterRecordEventHandlers(app application.Application) {
	handler := &RecordEventsHandler{
		app:     app,
		service: app.Service(services.AuditService{}).(*services.AuditService),
		logger:  configuration.Use().Logger(),
	}
	app.EventPublisher().Subscribe(handler.onRecordCreated)
	app.EventPublisher().Subscribe(handler.onRecordUpdated)
	app.EventPublisher().Subscribe(handler.onRecordDeleted)
}

// recordSnapshot is the audited view of a record. Timestamps stay out so
// update diffs only name attributes someone actually changed.
type recordSnapshot struct {
	Fields    map[string]any `json:"fields"`
	Tags      []string       `json:"tags"`
	Assignee  string         `json:"assignee,omitempty"`
	AccountID *uuid.UUID     `json:"account_id,omitempty"`
	IsTest    bool           `json:"is_test"`
}

func snapshotJSON(rec record.Record) (json.RawMessage, error) {
	return json.Marshal(recordSnapshot{
		Fields:    rec.Fields(),
		Tags:      rec.Tags(),
		Assignee:  rec.Assignee(),
		AccountID: rec.AccountID(),
		IsTest:    rec.IsTest(),
	})
}

func (h *RecordEventsHandler) onRecordCreated(event *record.CreatedEvent) {
	if h.service == nil || event == nil || event.Result == nil {
		return
	}

	after, err := snapshotJSON(event.Result)
	if err != nil {
		h.logger.WithError(err).Warn("failed to snapshot created record")
		return
	}
	h.persist(&changelog.ChangeLog{
		TenantID:  event.Result.TenantID(),
		UserID:    event.ActorID,
		Entity:    event.Result.Entity(),
		RecordID:  event.Result.ID(),
		Action:    changelog.ActionCreated,
		After:     after,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	})
}

func (h *RecordEventsHandler) onRecordUpdated(event *record.UpdatedEvent) {
	if h.service == nil || event == nil || event.Previous == nil || event.Result == nil {
		return
	}

	before, err := snapshotJSON(event.Previous)
	if err != nil {
		h.logger.WithError(err).Warn("failed to snapshot record before update")
		return
	}
	after, err := snapshotJSON(event.Result)
	if err != nil {
		h.logger.WithError(err).Warn("failed to snapshot record after update")
		return
	}

	var diff json.RawMessage
	if patch, err := jsondiff.CompareJSON(before, after); err != nil {
		h.logger.WithError(err).Warn("failed to diff record versions")
	} else if len(patch) > 0 {
		if diff, err = json.Marshal(patch); err != nil {
			h.logger.WithError(err).Warn("failed to encode record diff")
			diff = nil
		}
	}

	h.persist(&changelog.ChangeLog{
		TenantID:  event.Result.TenantID(),
		UserID:    event.ActorID,
		Entity:    event.Result.Entity(),
		RecordID:  event.Result.ID(),
		Action:    changelog.ActionUpdated,
		Before:    before,
		After:     after,
		Diff:      diff,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	})
}

func (h *RecordEventsHandler) onRecordDeleted(event *record.DeletedEvent) {
	if h.service == nil || event == nil || event.Result == nil {
		return
	}

	before, err := snapshotJSON(event.Result)
	if err != nil {
		h.logger.WithError(err).Warn("failed to snapshot deleted record")
		return
	}
	h.persist(&changelog.ChangeLog{
		TenantID:  event.Result.TenantID(),
		UserID:    event.ActorID,
		Entity:    event.Result.Entity(),
		RecordID:  event.Result.ID(),
		Action:    changelog.ActionDeleted,
		Before:    before,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	})
}

func (h *RecordEventsHandler) persist(entry *changelog.ChangeLog) {
	ctx := composables.WithPool(context.Background(), h.app.DB())
	ctx = composables.WithTenantID(ctx, entry.TenantID)

	if err := h.service.CreateChangeLog(ctx, entry); err != nil {
		h.logger.WithError(err).
			WithField("entity", entry.Entity).
			WithField("record_id", entry.RecordID).
			Warn("failed to persist change log")
	}
}
