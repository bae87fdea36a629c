package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func strPtr(s string) *string { return &s }

func sampleTable() *api.Table {
	return &api.Table{
		ID:   "t1",
		Cols: 3,
		Rows: 2,
		Columns: []api.Column{
			{Idx: 0, Header: strPtr("Name"), Format: cellformat.Text},
			{Idx: 1, Header: strPtr("Day"), Format: cellformat.Date},
		},
	}
}

func sampleCells() []api.Cell {
	return []api.Cell{
		api.NewCell(0, 0, "Ada"),
		api.NewCell(0, 1, "2025-05-13"),
		api.NewCell(1, 2, "x;y"),
		api.NewCell(5, 0, "outside"),
	}
}

func TestFromTable(t *testing.T) {
	ds := FromTable(sampleTable(), sampleCells(), false)

	assert.Equal(t, []string{"Name", "Day", "C"}, ds.Headers)
	assert.Equal(t, [][]string{
		{"Ada", "Tue 13 May 2025", ""},
		{"", "", "x;y"},
	}, ds.Rows)

	raw := FromTable(sampleTable(), sampleCells(), true)
	assert.Equal(t, "2025-05-13", raw.Rows[0][1])
}

func TestNames(t *testing.T) {
	assert.Equal(t, "A", ColumnName(0))
	assert.Equal(t, "AA", ColumnName(26))
	assert.Equal(t, "B3", CellName(2, 1))

	row, col, err := ParseCellName(" b3")
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 1}, [2]int{row, col})

	_, _, err = ParseCellName("3B")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, FromTable(sampleTable(), sampleCells(), true), ';'))
	assert.Equal(t, "Name;Day;C\nAda;2025-05-13;\n;;\"x;y\"\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")
	require.NoError(t, WriteXLSX(path, FromTable(sampleTable(), sampleCells(), false)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(DefaultSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)
	v, err = f.GetCellValue(DefaultSheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "x;y", v)
	v, err = f.GetCellValue(DefaultSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Day", v)
}
