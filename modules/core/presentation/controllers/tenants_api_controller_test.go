package controllers

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
)

func TestTenantsAPI_RequestValidation(t *testing.T) {
	f := newCoreAPIFixture(t)

	cases := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"get rejects malformed id", http.MethodGet, "/core/api/tenants/not-a-uuid", "", http.StatusBadRequest, "INVALID_ID"},
		{"patch rejects malformed id", http.MethodPatch, "/core/api/tenants/not-a-uuid", "{}", http.StatusBadRequest, "INVALID_ID"},
		{"delete rejects malformed id", http.MethodDelete, "/core/api/tenants/not-a-uuid", "", http.StatusBadRequest, "INVALID_ID"},
		{"create rejects malformed json", http.MethodPost, "/core/api/tenants", "{", http.StatusBadRequest, httpapi.CodeInvalidJSON},
		{"create rejects unknown body fields", http.MethodPost, "/core/api/tenants", `{"name":"Acme","bogus":true}`, http.StatusBadRequest, httpapi.CodeInvalidJSON},
		{"create rejects missing name", http.MethodPost, "/core/api/tenants", "{}", http.StatusBadRequest, httpapi.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			rec := f.do(tc.method, tc.target, adminToken, body)
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, tc.wantCode, decodeEnvelope(t, rec.Body).Code)
		})
	}

	t.Run("list requires credentials", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/core/api/tenants", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, httpapi.CodeUnauthorized, decodeEnvelope(t, rec.Body).Code)
	})
}
