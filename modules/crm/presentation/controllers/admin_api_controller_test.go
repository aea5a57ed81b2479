package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/crm/presentation/controllers/dtos"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
)

func TestAdminAPI_LookupEmployee(t *testing.T) {
	f := newCRMAPIFixture(t, "sk-test")

	t.Run("requires an elevated role", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/crm/api/admin/users?email=dana@example.com", agentToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, httpapi.CodeForbidden, decodeEnvelope(t, rec.Body).Code)
	})

	t.Run("requires the email parameter", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/crm/api/admin/users", adminToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "INVALID_QUERY", decodeEnvelope(t, rec.Body).Code)
	})

	t.Run("resolves an employee across tenants", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/crm/api/admin/users?email=Dana@Example.com", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dtos.EmployeeLookupResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, uint(7), resp.ID)
		require.Equal(t, f.employee.TenantID().String(), resp.TenantID)
		require.Equal(t, "dana@example.com", resp.Email)
		require.Equal(t, "Dana Scully", resp.DisplayName)
		require.Equal(t, "agent", resp.Role)
	})

	t.Run("unknown email reads as 404", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/crm/api/admin/users?email=ghost@example.com", adminToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, httpapi.CodeNotFound, decodeEnvelope(t, rec.Body).Code)
	})
}

func TestAdminAPI_LinkAccount(t *testing.T) {
	f := newCRMAPIFixture(t, "sk-test")
	target := "/crm/api/admin/accounts/" + uuid.NewString() + "/link"

	t.Run("requires an elevated role", func(t *testing.T) {
		rec := f.do(http.MethodPost, target, agentToken, strings.NewReader(`{"email":"dana@example.com"}`))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects a malformed account id", func(t *testing.T) {
		bad := "/crm/api/admin/accounts/" + strings.Repeat("-", 36) + "/link"
		rec := f.do(http.MethodPost, bad, adminToken, strings.NewReader(`{"email":"dana@example.com"}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "INVALID_ID", decodeEnvelope(t, rec.Body).Code)
	})

	t.Run("validates the email", func(t *testing.T) {
		rec := f.do(http.MethodPost, target, adminToken, strings.NewReader(`{"email":"not-an-email"}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		envelope := decodeEnvelope(t, rec.Body)
		require.Equal(t, httpapi.CodeValidation, envelope.Code)
		require.Contains(t, envelope.Meta, "Email")
	})

	t.Run("unknown employee reads as 404", func(t *testing.T) {
		rec := f.do(http.MethodPost, target, adminToken, strings.NewReader(`{"email":"ghost@example.com"}`))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
