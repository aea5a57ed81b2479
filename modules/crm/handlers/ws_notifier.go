package handlers

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

// changeNotice is the refresh hint pushed to a tenant's websocket channel
// after a write. Clients re-fetch lists and stats; the notice carries no
// record data.
type changeNotice struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
}

// RecordChangeNotifier fans record writes out to the owning tenant's
// websocket channel. Single writes, bulk runs and imports all end in one
// notice each.
type RecordChangeNotifier struct {
	hub    application.Huber
	logger *logrus.Logger
}

func RegisterRecordChangeNotifier(app application.Application) {
	hub := app.Websocket()
	if hub == nil {
		return
	}
	notifier := &RecordChangeNotifier{
		hub:    hub,
		logger: configuration.Use().Logger(),
	}
	app.EventPublisher().Subscribe(notifier.onCreated)
	app.EventPublisher().Subscribe(notifier.onUpdated)
	app.EventPublisher().Subscribe(notifier.onDeleted)
	app.EventPublisher().Subscribe(notifier.onBulkExecuted)
	app.EventPublisher().Subscribe(notifier.onImported)
}

func (n *RecordChangeNotifier) onCreated(event *record.CreatedEvent) {
	n.notify(event.Result.TenantID(), event.Result.Entity(), "created")
}

func (n *RecordChangeNotifier) onUpdated(event *record.UpdatedEvent) {
	n.notify(event.Result.TenantID(), event.Result.Entity(), "updated")
}

func (n *RecordChangeNotifier) onDeleted(event *record.DeletedEvent) {
	n.notify(event.Result.TenantID(), event.Result.Entity(), "deleted")
}

func (n *RecordChangeNotifier) onBulkExecuted(event *record.BulkExecutedEvent) {
	n.notify(event.TenantID, event.Entity, "bulk")
}

func (n *RecordChangeNotifier) onImported(event *record.ImportedEvent) {
	n.notify(event.TenantID, event.Entity, "imported")
}

func (n *RecordChangeNotifier) notify(tenantID uuid.UUID, entity, action string) {
	payload, err := json.Marshal(changeNotice{Entity: entity, Action: action})
	if err != nil {
		n.logger.WithError(err).Error("failed to encode change notice")
		return
	}
	n.hub.BroadcastToChannel(application.TenantChannel(tenantID), payload)
}
