package dtos

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/services"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

type CreateRecordDTO struct {
	Fields   map[string]any `json:"fields" validate:"required"`
	Tags     []string       `json:"tags" validate:"omitempty,dive,max=64"`
	Assignee string         `json:"assignee" validate:"omitempty,max=255"`
	IsTest   bool           `json:"is_test"`
}

func (dto *CreateRecordDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

func (dto *CreateRecordDTO) ToInput() services.CreateRecordInput {
	return services.CreateRecordInput{
		Fields:   dto.Fields,
		Tags:     dto.Tags,
		Assignee: dto.Assignee,
		IsTest:   dto.IsTest,
	}
}

// PatchRecordDTO is a partial update. Fields carries a JSON merge patch;
// absent envelope attributes keep their current value.
type PatchRecordDTO struct {
	Fields   json.RawMessage `json:"fields"`
	Tags     *[]string       `json:"tags"`
	Assignee *string         `json:"assignee" validate:"omitempty,max=255"`
	IsTest   *bool           `json:"is_test"`
}

func (dto *PatchRecordDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

func (dto *PatchRecordDTO) ToInput() services.PatchRecordInput {
	return services.PatchRecordInput{
		Fields:   dto.Fields,
		Tags:     dto.Tags,
		Assignee: dto.Assignee,
		IsTest:   dto.IsTest,
	}
}

// BulkRequestDTO selects targets either by explicit IDs or by select_all,
// which re-resolves the caller's current view server-side.
type BulkRequestDTO struct {
	Kind      string      `json:"kind" validate:"required,oneof=delete field_update reassign"`
	IDs       []uuid.UUID `json:"ids" validate:"required_without=SelectAll"`
	SelectAll bool        `json:"select_all"`
	Field     string      `json:"field" validate:"required_if=Kind field_update"`
	Value     any         `json:"value"`
	Assignee  string      `json:"assignee" validate:"omitempty,max=255"`
}

func (dto *BulkRequestDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

// ToOperation binds the request to the caller's view so select_all operates
// on exactly what the caller sees.
func (dto *BulkRequestDTO) ToOperation(view services.ViewOptions) services.BulkOperation {
	return services.BulkOperation{
		Kind:      dto.Kind,
		IDs:       dto.IDs,
		SelectAll: dto.SelectAll,
		View:      view,
		Field:     dto.Field,
		Value:     dto.Value,
		Assignee:  dto.Assignee,
	}
}

type RecordResponse struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Entity    string         `json:"entity"`
	Fields    map[string]any `json:"fields"`
	Tags      []string       `json:"tags"`
	Assignee  string         `json:"assignee,omitempty"`
	AccountID *string        `json:"account_id,omitempty"`
	IsTest    bool           `json:"is_test,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewRecordResponse(rec record.Record) RecordResponse {
	resp := RecordResponse{
		ID:        rec.ID().String(),
		TenantID:  rec.TenantID().String(),
		Entity:    rec.Entity(),
		Fields:    rec.Fields(),
		Tags:      rec.Tags(),
		Assignee:  rec.Assignee(),
		IsTest:    rec.IsTest(),
		CreatedAt: rec.CreatedAt(),
		UpdatedAt: rec.UpdatedAt(),
	}
	if accountID := rec.AccountID(); accountID != nil {
		s := accountID.String()
		resp.AccountID = &s
	}
	return resp
}

// RecordListResponse is the list envelope: the page slice, the
// post-refinement total, and facet counts for the whole filtered set.
type RecordListResponse struct {
	Items  []RecordResponse `json:"items"`
	Total  int              `json:"total"`
	Counts map[string]int64 `json:"counts"`
	Page   int              `json:"page"`
}

func NewRecordListResponse(res *record.ListResult) RecordListResponse {
	items := make([]RecordResponse, 0, len(res.Items))
	for _, rec := range res.Items {
		items = append(items, NewRecordResponse(rec))
	}
	return RecordListResponse{
		Items:  items,
		Total:  res.Total,
		Counts: res.Counts,
		Page:   res.Page,
	}
}
