package httpapi

import (
	"encoding/json"
	"net/http"
)

// Error codes shared by API controllers. Entity-specific codes live next to
// their controllers; these cover the cross-cutting cases.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeValidation       = "VALIDATION_FAILED"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

func Unauthorized(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, CodeNotFound, message, nil)
}

func Internal(w http.ResponseWriter) error {
	return WriteError(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
}

// ValidationFailed reports per-field validation messages under meta.
func ValidationFailed(w http.ResponseWriter, fields map[string]string) error {
	return WriteError(w, http.StatusBadRequest, CodeValidation, "validation failed", fields)
}
