package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

func decodeEnvelope(t *testing.T, body io.Reader) httpapi.ErrorEnvelope {
	t.Helper()
	var envelope httpapi.ErrorEnvelope
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope
}

func TestWriteServiceError(t *testing.T) {
	_, unknownEntityErr := catalog.Default().Get("widgets")
	require.Error(t, unknownEntityErr)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMeta   map[string]string
	}{
		{
			name:       "missing record",
			err:        errors.Wrap(record.ErrNotFound, "contacts"),
			wantStatus: http.StatusNotFound,
			wantCode:   httpapi.CodeNotFound,
		},
		{
			name:       "unknown entity",
			err:        unknownEntityErr,
			wantStatus: http.StatusNotFound,
			wantCode:   httpapi.CodeNotFound,
		},
		{
			name:       "authorization denial",
			err:        serrors.NewError("AUTHZ_FORBIDDEN", "crm:records write denied"),
			wantStatus: http.StatusForbidden,
			wantCode:   httpapi.CodeForbidden,
		},
		{
			name:       "rate limited",
			err:        serrors.NewError(httpapi.CodeRateLimited, "upstream throttled"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   httpapi.CodeRateLimited,
		},
		{
			name:       "coded validation error",
			err:        serrors.NewFieldRequiredError("first_name"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FIELD_REQUIRED",
			wantMeta:   map[string]string{"Field": "first_name"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/crm/api/records/contacts", nil)

			writeServiceError(rec, r, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)
			envelope := decodeEnvelope(t, rec.Body)
			require.Equal(t, tc.wantCode, envelope.Code)
			require.Equal(t, tc.wantMeta, envelope.Meta)
		})
	}

	t.Run("unknown errors log and read as 500", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logrus.New()
		logger.SetOutput(&buf)
		ctx := context.WithValue(context.Background(), constants.LoggerKey, logrus.NewEntry(logger))

		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/crm/api/records/contacts", nil).WithContext(ctx)

		writeServiceError(rec, r, errors.New("pool exhausted"))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, httpapi.CodeInternal, decodeEnvelope(t, rec.Body).Code)
		require.Contains(t, buf.String(), "unhandled crm service error")
		require.Contains(t, buf.String(), "pool exhausted")
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Kind string `json:"kind"`
	}

	t.Run("decodes a valid body", func(t *testing.T) {
		var dst payload
		err := decodeJSON(io.NopCloser(strings.NewReader(`{"kind":"delete"}`)), &dst)
		require.NoError(t, err)
		require.Equal(t, "delete", dst.Kind)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		var dst payload
		err := decodeJSON(io.NopCloser(strings.NewReader(`{"kind":"delete","bogus":1}`)), &dst)
		require.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		var dst payload
		err := decodeJSON(io.NopCloser(strings.NewReader(`{`)), &dst)
		require.Error(t, err)
	})
}

func TestRequireUser(t *testing.T) {
	t.Run("rejects anonymous requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/crm/api/records/contacts", nil)

		_, ok := requireUser(rec, r)
		require.False(t, ok)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, httpapi.CodeUnauthorized, decodeEnvelope(t, rec.Body).Code)
	})

	t.Run("passes the authenticated user through", func(t *testing.T) {
		agent := user.New(uuid.New(), "agent@example.com", user.RoleAgent)
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/crm/api/records/contacts", nil)
		r = r.WithContext(composables.WithUser(r.Context(), agent))

		got, ok := requireUser(rec, r)
		require.True(t, ok)
		require.Equal(t, agent, got)
	})
}

func TestRequireElevated(t *testing.T) {
	t.Run("rejects agents", func(t *testing.T) {
		agent := user.New(uuid.New(), "agent@example.com", user.RoleAgent)
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/crm/api/admin/users", nil)
		r = r.WithContext(composables.WithUser(r.Context(), agent))

		_, ok := requireElevated(rec, r)
		require.False(t, ok)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, httpapi.CodeForbidden, decodeEnvelope(t, rec.Body).Code)
	})

	t.Run("admits admins", func(t *testing.T) {
		admin := user.New(uuid.New(), "admin@example.com", user.RoleAdmin)
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/crm/api/admin/users", nil)
		r = r.WithContext(composables.WithUser(r.Context(), admin))

		got, ok := requireElevated(rec, r)
		require.True(t, ok)
		require.Equal(t, admin, got)
	})
}
