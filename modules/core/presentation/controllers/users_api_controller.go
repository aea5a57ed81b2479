package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/core/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/repo"
	"github.com/meridianhq/meridian-sdk/pkg/shared"
)

var userSortFields = map[string]user.Field{
	"email":        user.FieldEmail,
	"display_name": user.FieldDisplayName,
	"role":         user.FieldRole,
	"last_login":   user.FieldLastLogin,
	"created_at":   user.FieldCreatedAt,
	"updated_at":   user.FieldUpdatedAt,
}

type UsersAPIController struct {
	app       application.Application
	users     *services.UserService
	apiPrefix string
}

func NewUsersAPIController(app application.Application) application.Controller {
	return &UsersAPIController{
		app:       app,
		users:     app.Service(services.UserService{}).(*services.UserService),
		apiPrefix: "/core/api/users",
	}
}

func (c *UsersAPIController) Key() string {
	return c.apiPrefix
}

func (c *UsersAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)

	api.HandleFunc("", c.List).Methods(http.MethodGet)
	api.HandleFunc("", c.Create).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", c.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", c.Update).Methods(http.MethodPatch)
	api.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}:rotate-token", c.RotateToken).Methods(http.MethodPost)
}

type userListResponse struct {
	Data  []dtos.UserResponse `json:"data"`
	Total int64               `json:"total"`
}

func (c *UsersAPIController) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	pagination := composables.UsePaginated(r)
	params := &user.FindParams{
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
		Search: r.URL.Query().Get("search"),
	}

	if sortField, ok := userSortFields[r.URL.Query().Get("sort_by")]; ok {
		params.SortBy = user.SortBy{
			Fields: []repo.SortByField[user.Field]{{
				Field:     sortField,
				Ascending: r.URL.Query().Get("sort_dir") != "desc",
			}},
		}
	}

	users, total, err := c.users.GetPaginatedWithTotal(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := make([]dtos.UserResponse, 0, len(users))
	for _, u := range users {
		data = append(data, dtos.NewUserResponse(u))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, userListResponse{Data: data, Total: total})
}

func (c *UsersAPIController) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id", nil)
		return
	}

	u, err := c.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewUserResponse(u))
}

func (c *UsersAPIController) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "NO_TENANT", "no tenant in request scope", nil)
		return
	}

	dto := &dtos.CreateUserDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	entity, err := dto.ToEntity(tenantID)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_USER", err.Error(), nil)
		return
	}

	created, err := c.users.Create(r.Context(), entity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewUserResponse(created))
}

func (c *UsersAPIController) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id", nil)
		return
	}

	dto := &dtos.UpdateUserDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	existing, err := c.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	patched, err := dto.Apply(existing)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_USER", err.Error(), nil)
		return
	}

	updated, err := c.users.Update(r.Context(), patched)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewUserResponse(updated))
}

func (c *UsersAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id", nil)
		return
	}

	deleted, err := c.users.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewUserResponse(deleted))
}

func (c *UsersAPIController) RotateToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid user id", nil)
		return
	}

	rotated, err := c.users.RotateAPIToken(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.LoginResponse{
		Token: rotated.APIToken(),
		User:  dtos.NewUserResponse(rotated),
	})
}
