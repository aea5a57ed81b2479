package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// BaseError is the platform's coded error. Code is a stable machine-readable
// identifier surfaced in API envelopes; Message is the human-readable default.
type BaseError struct {
	Code         string
	Message      string
	TemplateData map[string]string
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	e.TemplateData = data
	return e
}

func NewError(code, message string) *BaseError {
	return &BaseError{
		Code:    code,
		Message: message,
	}
}

// ValidationErrors maps a field name to its validation error.
type ValidationErrors map[string]*BaseError

func NewFieldRequiredError(field string) *BaseError {
	return &BaseError{
		Code:    "FIELD_REQUIRED",
		Message: fmt.Sprintf("%s is required", field),
		TemplateData: map[string]string{
			"Field": field,
		},
	}
}

func NewInvalidFieldError(field, reason string) *BaseError {
	return &BaseError{
		Code:    "FIELD_INVALID",
		Message: fmt.Sprintf("%s is invalid: %s", field, reason),
		TemplateData: map[string]string{
			"Field":  field,
			"Reason": reason,
		},
	}
}

// ProcessValidatorErrors converts go-playground validator errors into the
// platform's coded form, keyed by struct field name.
func ProcessValidatorErrors(errs validator.ValidationErrors) map[string]*BaseError {
	out := make(map[string]*BaseError, len(errs))
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			out[field] = NewFieldRequiredError(field)
		case "email":
			out[field] = NewInvalidFieldError(field, "must be a valid email address")
		case "min", "max", "len":
			out[field] = NewInvalidFieldError(field, fmt.Sprintf("fails %s=%s", err.Tag(), err.Param()))
		case "oneof":
			out[field] = NewInvalidFieldError(field, fmt.Sprintf("must be one of: %s", err.Param()))
		default:
			out[field] = NewInvalidFieldError(field, err.Tag())
		}
	}
	return out
}

// Messages flattens validation errors into a field -> message map for API
// responses.
func (v ValidationErrors) Messages() map[string]string {
	out := make(map[string]string, len(v))
	for field, err := range v {
		out[field] = err.Message
	}
	return out
}
