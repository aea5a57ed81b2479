package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errUnknownExportFormat = serrors.NewError("UNKNOWN_EXPORT_FORMAT", "export format must be csv or xlsx")

// ExportFile is a rendered artifact ready to stream to the caller. Nothing
// is persisted server-side.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportService renders the caller's current view as a file. The record set
// is exactly what List shows: same scope, same cache, same refinement, no
// page window.
type ExportService struct {
	repo       record.Repository
	catalog    *catalog.Catalog
	cache      *querycache.QueryCache
	resolver   scope.AssigneeResolver
	fetchLimit int
	now        func() time.Time
}

func NewExportService(
	repo record.Repository,
	cat *catalog.Catalog,
	cache *querycache.QueryCache,
	resolver scope.AssigneeResolver,
	fetchLimit int,
) *ExportService {
	if fetchLimit <= 0 {
		fetchLimit = 10000
	}
	return &ExportService{
		repo:       repo,
		catalog:    cat,
		cache:      cache,
		resolver:   resolver,
		fetchLimit: fetchLimit,
		now:        time.Now,
	}
}

func (s *ExportService) Export(ctx context.Context, entityName, format string, opts ViewOptions) (*ExportFile, error) {
	if err := authorizeExports(ctx, "run"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, errUnknownExportFormat
	}

	rows := []record.Record{}
	if sc := buildViewScope(ctx, s.resolver, entityName, opts); sc.Fetchable {
		srt := sortOrDefault(ent, opts.Sort)
		key := listCacheKey(entityName, sc.Filter, srt)
		items, err := querycache.GetOrFetch(ctx, s.cache, key, func(fetchCtx context.Context) ([]record.Record, error) {
			return fetchScopeSet(fetchCtx, s.repo, sc, srt, s.fetchLimit)
		})
		if err != nil {
			return nil, err
		}
		rows = refineRecords(ent, items, opts.Refinement, s.now())
	}

	if format == FormatXLSX {
		data, err := renderXLSX(ent, rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Name: entityName + ".xlsx", ContentType: xlsxContentType, Data: data}, nil
	}
	data, err := renderCSV(ent, rows)
	if err != nil {
		return nil, err
	}
	return &ExportFile{Name: entityName + ".csv", ContentType: csvContentType, Data: data}, nil
}

// renderCSV writes rows under the catalog's declared field order. Re-importing
// the output maps every header back onto its field.
func renderCSV(ent catalog.Entity, rows []record.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := ent.FieldNames()
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		line := make([]string, len(header))
		for i, name := range header {
			v, _ := rec.Field(name)
			line[i] = exportValue(v)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(ent catalog.Entity, rows []record.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	names := ent.FieldNames()
	header := make([]any, len(names))
	for i, name := range names {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, rec := range rows {
		line := make([]any, len(names))
		for j, name := range names {
			v, _ := rec.Field(name)
			line[j] = exportValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportValue renders one cell: nil as empty, strings raw, scalars in their
// JSON form, maps and slices JSON-encoded.
func exportValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
