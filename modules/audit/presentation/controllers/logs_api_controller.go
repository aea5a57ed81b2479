package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/modules/audit/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/audit/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// LogsAPIController serves the tenant's audit trail to elevated users.
// The effective tenant follows the usual selection rules, so admins can
// inspect another tenant's trail via X-Tenant-ID.
type LogsAPIController struct {
	app         application.Application
	service     *services.AuditService
	apiPrefix   string
	pageSize    int
	maxPageSize int
}

func NewLogsAPIController(app application.Application) application.Controller {
	conf := configuration.Use()
	return &LogsAPIController{
		app:         app,
		service:     app.Service(services.AuditService{}).(*services.AuditService),
		apiPrefix:   "/audit/api",
		pageSize:    conf.PageSize,
		maxPageSize: conf.MaxPageSize,
	}
}

func (c *LogsAPIController) Key() string {
	return c.apiPrefix
}

func (c *LogsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)

	api.HandleFunc("/logs/changes", c.ListChanges).Methods(http.MethodGet)
	api.HandleFunc("/logs/auth", c.ListAuthentications).Methods(http.MethodGet)
}

func (c *LogsAPIController) ListChanges(w http.ResponseWriter, r *http.Request) {
	if !requireElevated(w, r) {
		return
	}

	params, page, err := c.parseChangeLogQuery(r.URL.Query())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	logs, total, err := c.service.ListChangeLogs(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewChangeLogListResponse(logs, total, page))
}

func (c *LogsAPIController) ListAuthentications(w http.ResponseWriter, r *http.Request) {
	if !requireElevated(w, r) {
		return
	}

	params, page, err := c.parseAuthLogQuery(r.URL.Query())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	logs, total, err := c.service.ListAuthenticationLogs(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewAuthenticationLogListResponse(logs, total, page))
}

func (c *LogsAPIController) parseChangeLogQuery(q url.Values) (*changelog.FindParams, int, error) {
	params := &changelog.FindParams{
		Entity: strings.TrimSpace(q.Get("entity")),
	}

	if raw := strings.TrimSpace(q.Get("record_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid record_id")
		}
		params.RecordID = &id
	}
	userID, err := parseUserIDParam(q)
	if err != nil {
		return nil, 0, err
	}
	params.UserID = userID

	if action := strings.TrimSpace(q.Get("action")); action != "" {
		switch action {
		case changelog.ActionCreated, changelog.ActionUpdated, changelog.ActionDeleted:
			params.Action = action
		default:
			return nil, 0, fmt.Errorf("unknown action %q", action)
		}
	}

	if params.From, err = parseTimeParam(q, "from"); err != nil {
		return nil, 0, err
	}
	if params.To, err = parseTimeParam(q, "to"); err != nil {
		return nil, 0, err
	}

	page, limit, offset, err := c.parsePageParams(q)
	if err != nil {
		return nil, 0, err
	}
	params.Limit = limit
	params.Offset = offset
	return params, page, nil
}

func (c *LogsAPIController) parseAuthLogQuery(q url.Values) (*authlog.FindParams, int, error) {
	params := &authlog.FindParams{
		Email: strings.TrimSpace(q.Get("email")),
	}

	userID, err := parseUserIDParam(q)
	if err != nil {
		return nil, 0, err
	}
	params.UserID = userID

	if raw := strings.TrimSpace(q.Get("success")); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid success")
		}
		params.Success = &success
	}

	if params.From, err = parseTimeParam(q, "from"); err != nil {
		return nil, 0, err
	}
	if params.To, err = parseTimeParam(q, "to"); err != nil {
		return nil, 0, err
	}

	page, limit, offset, err := c.parsePageParams(q)
	if err != nil {
		return nil, 0, err
	}
	params.Limit = limit
	params.Offset = offset
	return params, page, nil
}

func (c *LogsAPIController) parsePageParams(q url.Values) (page, limit, offset int, err error) {
	page = 1
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, fmt.Errorf("invalid page")
		}
	}
	limit = c.pageSize
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, fmt.Errorf("invalid page_size")
		}
	}
	if limit > c.maxPageSize {
		limit = c.maxPageSize
	}
	return page, limit, (page - 1) * limit, nil
}

func parseUserIDParam(q url.Values) (*uint, error) {
	raw := strings.TrimSpace(q.Get("user_id"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id")
	}
	id := uint(parsed)
	return &id, nil
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates.
func parseTimeParam(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return &parsed, nil
	}
	return nil, fmt.Errorf("invalid %s", name)
}

func requireElevated(w http.ResponseWriter, r *http.Request) bool {
	u, err := composables.UseUser(r.Context())
	if err != nil || u == nil {
		_ = httpapi.Unauthorized(w, "authentication required")
		return false
	}
	if !u.Role().IsElevated() {
		_ = httpapi.Forbidden(w, "elevated role required")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var base *serrors.BaseError
	if errors.As(err, &base) {
		switch base.Code {
		case "AUTHZ_FORBIDDEN":
			_ = httpapi.Forbidden(w, base.Message)
		default:
			_ = httpapi.WriteError(w, http.StatusBadRequest, base.Code, base.Message, base.TemplateData)
		}
		return
	}

	composables.UseLogger(r.Context()).WithError(err).Error("unhandled audit service error")
	_ = httpapi.Internal(w)
}
