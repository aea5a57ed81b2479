package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/core/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/core/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
)

type AuthAPIController struct {
	app       application.Application
	auth      *services.AuthService
	users     *services.UserService
	apiPrefix string
}

func NewAuthAPIController(app application.Application) application.Controller {
	return &AuthAPIController{
		app:       app,
		auth:      app.Service(services.AuthService{}).(*services.AuthService),
		users:     app.Service(services.UserService{}).(*services.UserService),
		apiPrefix: "/core/api/auth",
	}
}

func (c *AuthAPIController) Key() string {
	return c.apiPrefix
}

func (c *AuthAPIController) Register(r *mux.Router) {
	public := r.PathPrefix(c.apiPrefix).Subrouter()
	public.HandleFunc("/login", c.Login).Methods(http.MethodPost)

	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)
	api.HandleFunc("/me", c.Me).Methods(http.MethodGet)
	api.HandleFunc("/token:rotate", c.RotateToken).Methods(http.MethodPost)
}

func (c *AuthAPIController) Login(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.LoginDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	u, err := c.auth.Login(r.Context(), dto.Email, dto.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.LoginResponse{
		Token: u.APIToken(),
		User:  dtos.NewUserResponse(u),
	})
}

type meResponse struct {
	User              dtos.UserResponse `json:"user"`
	EffectiveTenantID string            `json:"effective_tenant_id"`
}

func (c *AuthAPIController) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	effective := u.TenantID()
	if tenantID, err := composables.UseTenantID(r.Context()); err == nil {
		effective = tenantID
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, meResponse{
		User:              dtos.NewUserResponse(u),
		EffectiveTenantID: effective.String(),
	})
}

func (c *AuthAPIController) RotateToken(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	rotated, err := c.users.RotateAPIToken(r.Context(), u.ID())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.LoginResponse{
		Token: rotated.APIToken(),
		User:  dtos.NewUserResponse(rotated),
	})
}
