package crmclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCSV = "Full Name,Email\nDana Soto,dana@example.com\nKim Vu,kim@example.com\n"

func TestClient_RunImport_SendsMultipartForm(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/crm/api/records/contacts/import", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		require.Equal(t, "leads.csv", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, testCSV, string(content))

		require.Equal(t, "dana@example.com", r.FormValue("default_assignee"))
		require.Equal(t, "4d7d73a8-8b3b-4a2e-9c39-000000000001", r.FormValue("tenant_id"))

		var mapping []ColumnMapping
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("mapping")), &mapping))
		require.Equal(t, []ColumnMapping{
			{Header: "Full Name", Field: "name"},
			{Header: "Email", Field: "email"},
		}, mapping)

		_, _ = w.Write([]byte(`{"succeeded":2,"failed":0,"linked":1}`))
	})
	client := newTestClient(t, handler)

	result, err := client.RunImport(context.Background(), "contacts", "leads.csv", strings.NewReader(testCSV), ImportOptions{
		DefaultAssignee: "dana@example.com",
		TenantID:        "4d7d73a8-8b3b-4a2e-9c39-000000000001",
		Mapping: []ColumnMapping{
			{Header: "Full Name", Field: "name"},
			{Header: "Email", Field: "email"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 0, result.Failed)
	require.Equal(t, 1, result.Linked)
}

func TestClient_RunImport_OmitsEmptyTuningFields(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, ok := r.MultipartForm.Value["default_assignee"]
		require.False(t, ok)
		_, ok = r.MultipartForm.Value["mapping"]
		require.False(t, ok)
		_, ok = r.MultipartForm.Value["tenant_id"]
		require.False(t, ok)
		_, _ = w.Write([]byte(`{"succeeded":2,"failed":0}`))
	})
	client := newTestClient(t, handler)

	_, err := client.RunImport(context.Background(), "contacts", "leads.csv", strings.NewReader(testCSV), ImportOptions{})
	require.NoError(t, err)
}

func TestClient_PreviewImport_DecodesPreview(t *testing.T) {
	previewJSON := `{
		"headers": ["Full Name", "Email", "Notes"],
		"mapping": [
			{"header": "Full Name", "field": "name"},
			{"header": "Email", "field": "email"},
			{"header": "Notes", "field": "skip"}
		],
		"issues": {"missing": ["status"]},
		"suggestions": {"Notes": ["notes", "status"]},
		"diagnostics": [{"row": 2, "message": "empty after normalization"}],
		"total_rows": 2,
		"valid_rows": 1,
		"sample": [{"number": 1, "fields": {"name": "Dana Soto"}, "link_value": "Globex"}]
	}`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/api/records/contacts/import/preview", r.URL.Path)
		_, _ = w.Write([]byte(previewJSON))
	})
	client := newTestClient(t, handler)

	preview, err := client.PreviewImport(context.Background(), "contacts", "leads.csv", strings.NewReader(testCSV), ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"Full Name", "Email", "Notes"}, preview.Headers)
	require.Len(t, preview.Mapping, 3)
	require.Equal(t, "skip", preview.Mapping[2].Field)
	require.Equal(t, []string{"status"}, preview.Issues.Missing)
	require.Equal(t, []string{"notes", "status"}, preview.Suggestions["Notes"])
	require.Equal(t, 2, preview.TotalRows)
	require.Equal(t, 1, preview.ValidRows)
	require.Len(t, preview.Sample, 1)
	require.Equal(t, "Globex", preview.Sample[0].LinkValue)
}

func TestClient_Export_ReturnsNamedFile(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/api/records/contacts/export", r.URL.Path)
		require.Equal(t, "xlsx", r.URL.Query().Get("format"))
		require.Equal(t, "lead", r.URL.Query().Get("status"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="contacts.xlsx"`)
		_, _ = w.Write([]byte("workbook-bytes"))
	})
	client := newTestClient(t, handler)

	file, err := client.Export(context.Background(), "contacts", "xlsx", ListOptions{
		Facets: map[string]string{"status": "lead"},
	})
	require.NoError(t, err)
	require.Equal(t, "contacts.xlsx", file.Name)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file.ContentType)
	require.Equal(t, []byte("workbook-bytes"), file.Data)
}

func TestClient_Export_DefaultsFormatToServer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["format"]
		require.False(t, present, "empty format is left to the server default")
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="contacts.csv"`)
		_, _ = w.Write([]byte("a,b\n"))
	})
	client := newTestClient(t, handler)

	file, err := client.Export(context.Background(), "contacts", "", ListOptions{})
	require.NoError(t, err)
	require.Equal(t, "contacts.csv", file.Name)
}
