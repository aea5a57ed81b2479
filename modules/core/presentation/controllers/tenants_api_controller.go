package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/modules/core/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/core/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/shared"
)

// TenantsAPIController manages tenants. The casbin policy restricts every
// route here to superadmins.
type TenantsAPIController struct {
	app       application.Application
	tenants   *services.TenantService
	apiPrefix string
}

func NewTenantsAPIController(app application.Application) application.Controller {
	return &TenantsAPIController{
		app:       app,
		tenants:   app.Service(services.TenantService{}).(*services.TenantService),
		apiPrefix: "/core/api/tenants",
	}
}

func (c *TenantsAPIController) Key() string {
	return c.apiPrefix
}

func (c *TenantsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)

	api.HandleFunc("", c.List).Methods(http.MethodGet)
	api.HandleFunc("", c.Create).Methods(http.MethodPost)
	api.HandleFunc("/{id}", c.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/{id}", c.Update).Methods(http.MethodPatch)
	api.HandleFunc("/{id}", c.Delete).Methods(http.MethodDelete)
}

type tenantListResponse struct {
	Data  []dtos.TenantResponse `json:"data"`
	Total int64                 `json:"total"`
}

func (c *TenantsAPIController) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	pagination := composables.UsePaginated(r)
	params := &tenant.FindParams{
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
		Search: r.URL.Query().Get("search"),
	}

	tenants, err := c.tenants.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	total, err := c.tenants.Count(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := make([]dtos.TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		data = append(data, dtos.NewTenantResponse(t))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, tenantListResponse{Data: data, Total: total})
}

func (c *TenantsAPIController) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid tenant id", nil)
		return
	}

	t, err := c.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewTenantResponse(t))
}

func (c *TenantsAPIController) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	dto := &dtos.CreateTenantDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	created, err := c.tenants.Create(r.Context(), dto.ToEntity())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewTenantResponse(created))
}

func (c *TenantsAPIController) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid tenant id", nil)
		return
	}

	dto := &dtos.UpdateTenantDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	existing, err := c.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dto.Apply(existing)

	updated, err := c.tenants.Update(r.Context(), existing)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewTenantResponse(updated))
}

func (c *TenantsAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid tenant id", nil)
		return
	}

	if err := c.tenants.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
