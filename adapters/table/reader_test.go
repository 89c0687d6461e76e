package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"statguide/domain/core"
	"statguide/internal"
)

func TestDecodeCSV(t *testing.T) {
	src := "group, score,\nA,5.1,x\nB, 6.0\n"

	tbl, err := Decode(strings.NewReader(src), FormatCSV)
	require.NoError(t, err)

	require.Len(t, tbl.Columns, 3)
	assert.Equal(t, "group", tbl.Columns[0].Name)
	assert.Equal(t, "score", tbl.Columns[1].Name)
	assert.Equal(t, "column_3", tbl.Columns[2].Name)
	assert.Equal(t, []interface{}{"5.1", "6.0"}, tbl.Columns[1].Values)
	assert.Equal(t, []interface{}{"x", nil}, tbl.Columns[2].Values)
	assert.Equal(t, 2, tbl.RowCount())
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(strings.NewReader(""), FormatCSV)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)

	_, err = Decode(strings.NewReader(`{"columns":[]}`), FormatJSON)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestDecodeJSON(t *testing.T) {
	tbl, err := Decode(strings.NewReader(`{"columns":[{"name":"x","values":[1,null,"3"]}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, nil, "3"}, tbl.Columns[0].Values)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("data/Survey.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = FormatOf("notes.docx")
	assert.True(t, core.IsValidationError(err))
}

func TestReadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"group", "score"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A", 5.1}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"B", 6}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"only"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := NewReader(path, internal.Discard()).Read()
	require.NoError(t, err)
	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, []interface{}{"A", "B"}, tbl.Columns[0].Values)
	assert.Equal(t, []interface{}{"5.1", "6"}, tbl.Columns[1].Values)

	tbl, err = NewReader(path, internal.Discard()).WithSheet("Other").Read()
	require.NoError(t, err)
	assert.Equal(t, "only", tbl.Columns[0].Name)
	assert.Equal(t, 0, tbl.RowCount())
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n3,4\n"), 0o600))

	tbl, err := NewReader(path, nil).Read()
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.csv"), nil).Read()
	assert.Error(t, err)
}

func TestDecodeWorkbookStream(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"x", "y"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, 2}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := Decode(buf, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2"}, tbl.Columns[1].Values)

	_, err = Decode(strings.NewReader("not a zip"), FormatXLSX)
	assert.Error(t, err)
}
