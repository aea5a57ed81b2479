package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/services"
	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

// AuthEventsHandler records login attempts. Failures against an unknown
// email have no tenant to file under and are skipped; the auth service
// already logs those attempts.
type AuthEventsHandler struct {
	app     application.Application
	service *services.AuditService
	logger  *logrus.Logger
}

func RegisterAuthEventHandlers(app application.Application) {
	handler := &AuthEventsHandler{
		app:     app,
		service: app.Service(services.AuditService{}).(*services.AuditService),
		logger:  configuration.Use().Logger(),
	}
	app.EventPublisher().Subscribe(handler.onSignedIn)
	app.EventPublisher().Subscribe(handler.onSignInFailed)
}

func (h *AuthEventsHandler) onSignedIn(event *user.SignedInEvent) {
	if h.service == nil || event == nil || event.Result == nil {
		return
	}

	userID := event.Result.ID()
	h.persist(&authlog.AuthenticationLog{
		TenantID:  event.Result.TenantID(),
		UserID:    &userID,
		Email:     event.Result.Email(),
		Success:   true,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	})
}

func (h *AuthEventsHandler) onSignInFailed(event *user.SignInFailedEvent) {
	if h.service == nil || event == nil {
		return
	}
	if event.TenantID == uuid.Nil {
		return
	}

	h.persist(&authlog.AuthenticationLog{
		TenantID:  event.TenantID,
		Email:     event.Email,
		Success:   false,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	})
}

func (h *AuthEventsHandler) persist(entry *authlog.AuthenticationLog) {
	ctx := composables.WithPool(context.Background(), h.app.DB())
	ctx = composables.WithTenantID(ctx, entry.TenantID)

	if err := h.service.CreateAuthenticationLog(ctx, entry); err != nil {
		h.logger.WithError(err).
			WithField("email", entry.Email).
			Warn("failed to persist authentication log")
	}
}
