package dtos

import (
	"github.com/go-playground/validator/v10"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// LinkAccountDTO names the employee an account should be linked to.
type LinkAccountDTO struct {
	Email string `json:"email" validate:"required,email"`
}

func (dto *LinkAccountDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

// EmployeeLookupResponse is the admin view of one employee, tenant included
// so cross-tenant lookups identify where the account lives.
type EmployeeLookupResponse struct {
	ID          uint   `json:"id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func NewEmployeeLookupResponse(u user.User) EmployeeLookupResponse {
	return EmployeeLookupResponse{
		ID:          u.ID(),
		TenantID:    u.TenantID().String(),
		Email:       u.Email(),
		DisplayName: u.DisplayName(),
		Role:        u.Role().String(),
	}
}
