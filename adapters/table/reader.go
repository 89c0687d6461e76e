// Package table loads raw tables from CSV, XLSX and JSON files
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"statguide/domain/core"
	"statguide/domain/profiling"
	"statguide/internal"
)

// Format is a supported file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatOf infers the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", core.NewValidationError("file", fmt.Sprintf("unsupported file type %q", filepath.Ext(path)))
}

// Reader reads one file into a profiling.RawTable. Cells stay strings; the
// profiler decides what is numeric.
type Reader struct {
	path   string
	sheet  string
	logger *internal.Logger
}

// NewReader creates a reader. For workbooks the first sheet is read unless
// WithSheet names another.
func NewReader(path string, logger *internal.Logger) *Reader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reader{path: path, logger: logger.With("TableReader")}
}

// WithSheet selects a worksheet by name
func (r *Reader) WithSheet(sheet string) *Reader {
	r.sheet = sheet
	return r
}

// Read loads the file
func (r *Reader) Read() (profiling.RawTable, error) {
	format, err := FormatOf(r.path)
	if err != nil {
		return profiling.RawTable{}, err
	}
	start := time.Now()

	var t profiling.RawTable
	switch format {
	case FormatXLSX:
		t, err = r.readWorkbook()
	default:
		var f *os.File
		f, err = os.Open(r.path)
		if err != nil {
			return profiling.RawTable{}, fmt.Errorf("open %s: %w", r.path, err)
		}
		defer f.Close()
		t, err = Decode(f, format)
	}
	if err != nil {
		return profiling.RawTable{}, err
	}

	r.logger.Debug("%s read in %.2fms (%d columns, %d rows)", r.path, float64(time.Since(start).Microseconds())/1e3, len(t.Columns), t.RowCount())
	return t, nil
}

func (r *Reader) readWorkbook() (profiling.RawTable, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return profiling.RawTable{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return sheetTable(f, r.sheet)
}

// sheetTable reads the named sheet, or the first one when sheet is empty
func sheetTable(f *excelize.File, sheet string) (profiling.RawTable, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return profiling.RawTable{}, core.ErrEmptyDataset
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return profiling.RawTable{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

// Decode reads a table from a stream. JSON is the column-wise RawTable
// encoding; workbooks are read from their first sheet.
func Decode(src io.Reader, format Format) (profiling.RawTable, error) {
	switch format {
	case FormatCSV:
		reader := csv.NewReader(src)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return profiling.RawTable{}, fmt.Errorf("read CSV: %w", err)
		}
		return fromRows(rows)
	case FormatJSON:
		var t profiling.RawTable
		if err := json.NewDecoder(src).Decode(&t); err != nil {
			return profiling.RawTable{}, fmt.Errorf("decode JSON table: %w", err)
		}
		if len(t.Columns) == 0 {
			return profiling.RawTable{}, core.ErrEmptyDataset
		}
		return t, nil
	case FormatXLSX:
		f, err := excelize.OpenReader(src)
		if err != nil {
			return profiling.RawTable{}, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		return sheetTable(f, "")
	default:
		return profiling.RawTable{}, core.NewValidationError("format", fmt.Sprintf("unknown format %q", format))
	}
}

// fromRows turns a header row plus records into a table. Short records are
// padded as missing; cells beyond the header are ignored.
func fromRows(rows [][]string) (profiling.RawTable, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return profiling.RawTable{}, core.ErrEmptyDataset
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	records := make([][]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make([]interface{}, len(headers))
		for j := range headers {
			if j < len(row) {
				record[j] = strings.TrimSpace(row[j])
			}
		}
		records = append(records, record)
	}
	return profiling.NewRawTable(headers, records), nil
}
