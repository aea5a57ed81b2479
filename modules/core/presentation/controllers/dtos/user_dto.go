package dtos

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

type CreateUserDTO struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"omitempty,max=255"`
	Role        string `json:"role" validate:"required,oneof=superadmin admin manager agent"`
	Password    string `json:"password" validate:"omitempty,min=8"`
}

func (dto *CreateUserDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

func (dto *CreateUserDTO) ToEntity(tenantID uuid.UUID) (user.User, error) {
	role, err := user.NewRole(dto.Role)
	if err != nil {
		return nil, err
	}
	u := user.New(
		tenantID,
		dto.Email,
		role,
		user.WithDisplayName(dto.DisplayName),
	)
	u, err = u.RotateAPIToken()
	if err != nil {
		return nil, err
	}
	if dto.Password != "" {
		return u.SetPassword(dto.Password)
	}
	return u, nil
}

type UpdateUserDTO struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Role        *string `json:"role" validate:"omitempty,oneof=superadmin admin manager agent"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
}

func (dto *UpdateUserDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

// Apply merges the patch onto an existing user; absent fields keep their
// current value.
func (dto *UpdateUserDTO) Apply(u user.User) (user.User, error) {
	if dto.DisplayName != nil {
		u = u.SetDisplayName(*dto.DisplayName)
	}
	if dto.Role != nil {
		role, err := user.NewRole(*dto.Role)
		if err != nil {
			return nil, err
		}
		u = u.SetRole(role)
	}
	if dto.Password != nil {
		var err error
		u, err = u.SetPassword(*dto.Password)
		if err != nil {
			return nil, err
		}
	}
	return u, nil
}

type UserResponse struct {
	ID          uint       `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func NewUserResponse(u user.User) UserResponse {
	return UserResponse{
		ID:          u.ID(),
		TenantID:    u.TenantID().String(),
		Email:       u.Email(),
		DisplayName: u.DisplayName(),
		Role:        u.Role().String(),
		LastLogin:   u.LastLogin(),
		CreatedAt:   u.CreatedAt(),
		UpdatedAt:   u.UpdatedAt(),
	}
}
