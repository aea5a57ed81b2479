package dtos

import (
	"github.com/go-playground/validator/v10"

	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (dto *LoginDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	fields := serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))
	return serrors.ValidationErrors(fields).Messages(), false
}

// LoginResponse carries the API token the client should send as a bearer
// credential on subsequent requests.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
