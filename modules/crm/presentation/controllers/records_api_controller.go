package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/modules/crm/services"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/shared"
)

const (
	entityPattern = "[a-z_]+"
	uuidPattern   = "[0-9a-fA-F-]{36}"
)

// RecordsAPIController is the generic entity surface: one route set serves
// every catalog entity. The entity name is a path variable validated against
// the catalog, never a switch.
type RecordsAPIController struct {
	app       application.Application
	catalog   *catalog.Catalog
	records   *services.RecordService
	queries   *services.RecordQueryService
	bulk      *services.BulkService
	imports   *services.ImportService
	exports   *services.ExportService
	assist    *services.AIService
	apiPrefix string
}

func NewRecordsAPIController(app application.Application) application.Controller {
	return &RecordsAPIController{
		app:       app,
		catalog:   catalog.Default(),
		records:   app.Service(services.RecordService{}).(*services.RecordService),
		queries:   app.Service(services.RecordQueryService{}).(*services.RecordQueryService),
		bulk:      app.Service(services.BulkService{}).(*services.BulkService),
		imports:   app.Service(services.ImportService{}).(*services.ImportService),
		exports:   app.Service(services.ExportService{}).(*services.ExportService),
		assist:    app.Service(services.AIService{}).(*services.AIService),
		apiPrefix: "/crm/api/records",
	}
}

func (c *RecordsAPIController) Key() string {
	return c.apiPrefix
}

func (c *RecordsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(
		middleware.Authorize(),
		middleware.ProvideUser(),
	)

	entity := fmt.Sprintf("/{entity:%s}", entityPattern)
	item := fmt.Sprintf("%s/{id:%s}", entity, uuidPattern)

	api.HandleFunc(entity, c.List).Methods(http.MethodGet)
	api.HandleFunc(entity, c.Create).Methods(http.MethodPost)
	api.HandleFunc(entity+":stats", c.Stats).Methods(http.MethodGet)
	api.HandleFunc(entity+"/bulk", c.Bulk).Methods(http.MethodPost)
	api.HandleFunc(entity+"/import/preview", c.ImportPreview).Methods(http.MethodPost)
	api.HandleFunc(entity+"/import", c.ImportRun).Methods(http.MethodPost)
	api.HandleFunc(entity+"/export", c.Export).Methods(http.MethodGet)
	api.HandleFunc(item, c.GetByID).Methods(http.MethodGet)
	api.HandleFunc(item, c.Patch).Methods(http.MethodPatch)
	api.HandleFunc(item, c.Delete).Methods(http.MethodDelete)
	if c.assist.Enabled() {
		api.HandleFunc(item+":assist", c.Assist).Methods(http.MethodPost)
	}
}

func (c *RecordsAPIController) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	ent, err := c.catalog.Get(mux.Vars(r)["entity"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := parseViewOptions(r, ent)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	result, err := c.queries.List(r.Context(), ent.Name, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRecordListResponse(result))
}

func (c *RecordsAPIController) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	ent, err := c.catalog.Get(mux.Vars(r)["entity"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := parseViewOptions(r, ent)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	stats, err := c.queries.Stats(r.Context(), ent.Name, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, stats)
}

func (c *RecordsAPIController) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	dto := &dtos.CreateRecordDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	created, err := c.records.Create(r.Context(), mux.Vars(r)["entity"], dto.ToInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewRecordResponse(created))
}

func (c *RecordsAPIController) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid record id", nil)
		return
	}

	rec, err := c.records.GetByID(r.Context(), mux.Vars(r)["entity"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRecordResponse(rec))
}

func (c *RecordsAPIController) Patch(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid record id", nil)
		return
	}

	dto := &dtos.PatchRecordDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	updated, err := c.records.Patch(r.Context(), mux.Vars(r)["entity"], id, dto.ToInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRecordResponse(updated))
}

func (c *RecordsAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid record id", nil)
		return
	}

	deleted, err := c.records.Delete(r.Context(), mux.Vars(r)["entity"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRecordResponse(deleted))
}

func (c *RecordsAPIController) Bulk(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	ent, err := c.catalog.Get(mux.Vars(r)["entity"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := parseViewOptions(r, ent)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	dto := &dtos.BulkRequestDTO{}
	if err := decodeJSON(r.Body, dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body", nil)
		return
	}
	if fields, ok := dto.Ok(); !ok {
		_ = httpapi.ValidationFailed(w, fields)
		return
	}

	result, err := c.bulk.Execute(r.Context(), ent.Name, dto.ToOperation(opts))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, result)
}

func (c *RecordsAPIController) ImportPreview(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	data, ok := readUpload(w, r)
	if !ok {
		return
	}
	opts, err := importOptionsFromForm(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	preview, err := c.imports.Preview(r.Context(), mux.Vars(r)["entity"], data, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, preview)
}

func (c *RecordsAPIController) ImportRun(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	data, ok := readUpload(w, r)
	if !ok {
		return
	}
	opts, err := importOptionsFromForm(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	result, err := c.imports.Run(r.Context(), mux.Vars(r)["entity"], data, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, result)
}

func (c *RecordsAPIController) Export(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	ent, err := c.catalog.Get(mux.Vars(r)["entity"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := parseViewOptions(r, ent)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	file, err := c.exports.Export(r.Context(), ent.Name, format, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (c *RecordsAPIController) Assist(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := shared.ParseUUID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid record id", nil)
		return
	}

	result, err := c.assist.Assist(r.Context(), mux.Vars(r)["entity"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, result)
}

// readUpload pulls the uploaded file out of the multipart form, bounded by
// the configured upload limit.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	conf := configuration.Use()
	r.Body = http.MaxBytesReader(w, r.Body, conf.MaxUploadSize)
	if err := r.ParseMultipartForm(conf.MaxUploadSize); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_UPLOAD", "could not parse upload", nil)
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "MISSING_FILE", "file field is required", nil)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_UPLOAD", "could not read upload", nil)
		return nil, false
	}
	return data, true
}

// importOptionsFromForm reads the import tuning fields that ride alongside
// the upload: an explicit column mapping, the default assignee, and the
// tenant selection for elevated callers.
func importOptionsFromForm(r *http.Request) (services.ImportOptions, error) {
	opts := services.ImportOptions{
		DefaultAssignee: strings.TrimSpace(r.FormValue("default_assignee")),
	}
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Mapping); err != nil {
			return opts, errors.Wrap(err, "invalid mapping")
		}
	}
	if id, ok := middleware.SelectedTenant(r); ok {
		opts.TenantID = id
	} else if raw := strings.TrimSpace(r.FormValue("tenant_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, errors.Wrap(err, "invalid tenant_id")
		}
		opts.TenantID = id
	}
	return opts, nil
}
