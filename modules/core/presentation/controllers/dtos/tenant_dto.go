package dtos

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/entities/tenant"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

type CreateTenantDTO struct {
	Name   string `json:"name" validate:"required,max=255"`
	Domain string `json:"domain" validate:"omitempty,fqdn"`
}

func (dto *CreateTenantDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

func (dto *CreateTenantDTO) ToEntity() *tenant.Tenant {
	return tenant.New(dto.Name, tenant.WithDomain(dto.Domain))
}

type UpdateTenantDTO struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Domain   *string `json:"domain" validate:"omitempty,fqdn"`
	IsActive *bool   `json:"is_active"`
}

func (dto *UpdateTenantDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

func (dto *UpdateTenantDTO) Apply(t *tenant.Tenant) {
	if dto.Name != nil {
		t.SetName(*dto.Name)
	}
	if dto.Domain != nil {
		t.SetDomain(*dto.Domain)
	}
	if dto.IsActive != nil {
		t.SetIsActive(*dto.IsActive)
	}
}

type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID().String(),
		Name:      t.Name(),
		Domain:    t.Domain(),
		IsActive:  t.IsActive(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}
