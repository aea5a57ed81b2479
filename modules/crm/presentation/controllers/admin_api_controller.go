package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	coreservices "github.com/meridianhq/meridian-sdk/modules/core/services"
	"github.com/meridianhq/meridian-sdk/modules/crm/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/crm/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/shared"
)

// AdminAPIController covers the cross-tenant plumbing ordinary record routes
// refuse: employee lookup by email and account-employee linking. Every route
// requires an elevated role.
type AdminAPIController struct {
	app       application.Application
	users     *coreservices.UserService
	records   *services.RecordService
	apiPrefix string
}

func NewAdminAPIController(app application.Application) application.Controller {
	return &AdminAPIController{
		app:       app,
		users:     app.Service(coreservices.UserService{}).(*coreservices.UserService),
		records:   app.Service(services.RecordService{}).(*services.RecordService),
		apiPrefix: "/crm/api/admin",
	}
}

func (c *AdminAPIController) Key() string {
	return c.apiPrefix
}

func (c *AdminAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)

	api.HandleFunc("/users", c.LookupEmployee).Methods(http.MethodGet)
	api.HandleFunc(fmt.Sprintf("/accounts/{id:%s}/link", uuidPattern), c.LinkAccount).Methods(http.MethodPost)
}

// LookupEmployee resolves an employee by email across tenants. Emails are
// globally unique, so the answer also names the tenant the employee
// belongs to.
func (c *AdminAPIController) LookupEmployee(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireElevated(w, r); !ok {
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", "email parameter is required", nil)
		return
	}

	employee, err := c.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			_ = httpapi.NotFound(w, err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewEmployeeLookupResponse(employee))
}

// LinkAccount assigns an account record to the employee named in the body.
// The employee's tenant decides where the account is looked up, so the
// caller does not need a tenant selection.
func (c *AdminAPIController) LinkAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireElevated(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid account id", nil)
		return
	}

	dto := &dtos.LinkAccountDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	employee, err := c.users.GetByEmail(r.Context(), dto.Email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			_ = httpapi.NotFound(w, err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}

	assignee := employee.Email()
	ctx := composables.WithTenantID(r.Context(), employee.TenantID())
	linked, err := c.records.Patch(ctx, "accounts", id, services.PatchRecordInput{
		Assignee: &assignee,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRecordResponse(linked))
}
