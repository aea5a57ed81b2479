package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func requireUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	u, err := composables.UseUser(r.Context())
	if err != nil || u == nil {
		_ = httpapi.Unauthorized(w, "authentication required")
		return nil, false
	}
	return u, true
}

// writeServiceError translates service layer errors into API envelopes.
// Coded errors carry their own mapping; anything unknown becomes a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, persistence.ErrUserNotFound) || errors.Is(err, persistence.ErrTenantNotFound) {
		_ = httpapi.NotFound(w, err.Error())
		return
	}
	if errors.Is(err, persistence.ErrEmailTaken) {
		_ = httpapi.WriteError(w, http.StatusConflict, httpapi.CodeConflict, err.Error(), nil)
		return
	}

	var base *serrors.BaseError
	if errors.As(err, &base) {
		switch base.Code {
		case "AUTHZ_FORBIDDEN":
			_ = httpapi.Forbidden(w, base.Message)
		case "INVALID_CREDENTIALS", "INVALID_TOKEN":
			_ = httpapi.WriteError(w, http.StatusUnauthorized, base.Code, base.Message, nil)
		case httpapi.CodeRateLimited:
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, base.Code, base.Message, nil)
		default:
			_ = httpapi.WriteError(w, http.StatusBadRequest, base.Code, base.Message, base.TemplateData)
		}
		return
	}

	composables.UseLogger(r.Context()).WithError(err).Error("unhandled service error")
	_ = httpapi.Internal(w)
}
