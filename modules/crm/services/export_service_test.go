package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/imports"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
)

func newExportTestService(t *testing.T, repo *fakeRecordRepo) *ExportService {
	t.Helper()
	allowAll(t)
	passthroughTx(t)
	return NewExportService(repo, catalog.Default(), newTestCache(t), &stubResolver{}, 0)
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportService_CSV(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	repo := newFakeRecordRepo()
	repo.seed(
		record.New(tenantID, "contacts",
			map[string]any{"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com", "status": "lead"},
			record.WithCreatedAt(now.Add(-time.Hour)),
		),
		record.New(tenantID, "contacts",
			map[string]any{"first_name": "John", "last_name": "Smith"},
			record.WithCreatedAt(now.Add(-2*time.Hour)),
		),
	)
	svc := newExportTestService(t, repo)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	file, err := svc.Export(userContext(manager), "contacts", FormatCSV, ViewOptions{})
	require.NoError(t, err)

	require.Equal(t, "contacts.csv", file.Name)
	require.Equal(t, "text/csv", file.ContentType)

	rows := parseCSV(t, file.Data)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"first_name", "last_name", "email", "phone", "title", "status", "notes"}, rows[0])
	require.Equal(t, []string{"Jane", "Doe", "jane@example.com", "", "", "lead", ""}, rows[1], "default order places the newest record first")
	require.Equal(t, "John", rows[2][0])
}

func TestExportService_CSV_RoundTripsThroughImport(t *testing.T) {
	tenantID := uuid.New()
	source := newFakeRecordRepo()
	source.seed(
		record.New(tenantID, "contacts",
			map[string]any{"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com", "status": "lead"}),
		record.New(tenantID, "contacts",
			map[string]any{"first_name": "John", "last_name": "Smith", "phone": "(555) 123-4567"}),
	)
	exporter := newExportTestService(t, source)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	file, err := exporter.Export(userContext(manager), "contacts", FormatCSV, ViewOptions{})
	require.NoError(t, err)

	ent, err := catalog.Default().Get("contacts")
	require.NoError(t, err)
	table, err := imports.Parse(file.Data)
	require.NoError(t, err)
	for _, col := range imports.AutoMap(ent, table.Headers) {
		require.Equal(t, col.Header, col.Field, "export headers must map straight back onto their fields")
	}

	target := newFakeRecordRepo()
	importer := newImportTestService(t, target, &stubResolver{}, &capturePublisher{}, 0)
	res, err := importer.Run(userContext(manager), "contacts", file.Data, ImportOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, res.Succeeded)
	jane := findByField(target, "first_name", "Jane")
	require.NotNil(t, jane)
	email, _ := jane.Field("email")
	require.Equal(t, "jane@example.com", email)
}

func TestExportService_XLSX(t *testing.T) {
	tenantID := uuid.New()
	repo := newFakeRecordRepo()
	repo.seed(record.New(tenantID, "contacts", map[string]any{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@example.com",
		"phone":      "(555) 123-4567",
		"title":      "VP Sales",
		"status":     "lead",
		"notes":      "met at expo",
	}))
	svc := newExportTestService(t, repo)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	file, err := svc.Export(userContext(manager), "contacts", FormatXLSX, ViewOptions{})
	require.NoError(t, err)

	require.Equal(t, "contacts.xlsx", file.Name)
	require.Equal(t, xlsxContentType, file.ContentType)

	book, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, book.Close())
	}()

	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"first_name", "last_name", "email", "phone", "title", "status", "notes"}, rows[0])
	require.Equal(t, []string{"Jane", "Doe", "jane@example.com", "(555) 123-4567", "VP Sales", "lead", "met at expo"}, rows[1])
}

func TestExportService_ValueRendering(t *testing.T) {
	tenantID := uuid.New()
	repo := newFakeRecordRepo()
	repo.seed(record.New(tenantID, "accounts", map[string]any{
		"name":           "Acme",
		"website":        nil,
		"annual_revenue": float64(1250000.5),
		"employee_count": 250,
		"notes":          map[string]any{"source": "import"},
	}))
	svc := newExportTestService(t, repo)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	file, err := svc.Export(userContext(manager), "accounts", "", ViewOptions{})
	require.NoError(t, err)

	rows := parseCSV(t, file.Data)
	require.Equal(t, []string{"name", "industry", "website", "phone", "annual_revenue", "employee_count", "notes"}, rows[0])
	require.Equal(t, []string{"Acme", "", "", "", "1250000.5", "250", `{"source":"import"}`}, rows[1])
}

func TestExportService_UnfetchableScopeExportsHeaderOnly(t *testing.T) {
	repo := newFakeRecordRepo()
	repo.seed(record.New(uuid.New(), "contacts", map[string]any{"first_name": "Hidden", "last_name": "Row"}))
	svc := newExportTestService(t, repo)

	admin := user.New(uuid.New(), "admin@example.com", user.RoleAdmin)
	file, err := svc.Export(userContext(admin), "contacts", FormatCSV, ViewOptions{})
	require.NoError(t, err)

	rows := parseCSV(t, file.Data)
	require.Len(t, rows, 1, "no tenant selection means no rows, not an error")
	require.Zero(t, repo.findCalls)
}

func TestExportService_UnknownFormat(t *testing.T) {
	svc := newExportTestService(t, newFakeRecordRepo())
	manager := user.New(uuid.New(), "mgr@example.com", user.RoleManager)

	_, err := svc.Export(userContext(manager), "contacts", "pdf", ViewOptions{})
	require.ErrorIs(t, err, errUnknownExportFormat)
}

func TestExportService_SharesListCache(t *testing.T) {
	tenantID := uuid.New()
	repo := newFakeRecordRepo()
	repo.seed(
		record.New(tenantID, "contacts", map[string]any{"first_name": "A", "last_name": "One", "status": "lead"}),
		record.New(tenantID, "contacts", map[string]any{"first_name": "B", "last_name": "Two", "status": "active"}),
	)
	allowAll(t)
	passthroughTx(t)

	cache := newTestCache(t)
	queries := NewRecordQueryService(repo, catalog.Default(), cache, &stubResolver{}, QueryConfig{})
	exporter := NewExportService(repo, catalog.Default(), cache, &stubResolver{}, 0)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	_, err := queries.List(userContext(manager), "contacts", ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.findCalls)

	view := ViewOptions{Refinement: record.Refinement{Facets: map[string]string{"status": "lead"}}}
	file, err := exporter.Export(userContext(manager), "contacts", FormatCSV, view)
	require.NoError(t, err)

	require.Equal(t, 1, repo.findCalls, "the export reuses the listing's cached fetch")
	rows := parseCSV(t, file.Data)
	require.Len(t, rows, 2, "refinement still narrows the exported rows")
	require.Equal(t, "A", rows[1][0])
}
