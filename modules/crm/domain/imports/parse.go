// Package imports implements the file side of the import pipeline: parsing
// uploaded spreadsheets, mapping columns to catalog fields, and normalizing
// row values into candidate records. Submission and linking live in the
// import service; everything here is pure over bytes.
package imports

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile         = errors.New("file has no rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is a parsed upload: the header row plus data rows. Rows may be
// ragged; Cell pads reads beyond a row's length.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the value at column col of row, or "" past the row's end.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Parse sniffs the upload's content and parses it into a Table. The
// filename plays no part in format detection.
func Parse(data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	detected := mimetype.Detect(data)
	if detected.Is(xlsxMIME) {
		return parseXLSX(data)
	}
	if isTextual(detected) {
		return parseDelimited(data)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", detected.String())
}

// isTextual walks the detected type's ancestry looking for text/plain, which
// covers csv, tsv, and unrecognized delimited text.
func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// parseDelimited reads comma or tab separated text. The delimiter is chosen
// from the header line: tab when present, comma otherwise. Quoted fields
// follow RFC 4180, doubled quotes included.
func parseDelimited(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1

	var table Table
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse delimited file")
		}
		if table.Headers == nil {
			table.Headers = row
			continue
		}
		if isBlankRow(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	if len(table.Headers) == 0 {
		return nil, ErrEmptyFile
	}
	return &table, nil
}

func detectDelimiter(data []byte) rune {
	header := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		header = data[:idx]
	}
	if bytes.ContainsRune(header, '\t') {
		return '\t'
	}
	return ','
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseXLSX reads the first sheet of a workbook.
func parseXLSX(data []byte) (*Table, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer func() {
		_ = book.Close()
	}()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "read sheet")
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	table := &Table{Headers: rows[0]}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
