// Package export turns a table's cells into flat rows for CSV, XLSX and
// Google Sheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"

	"github.com/xuri/excelize/v2"
)

const DefaultSheet = "Sheet1"

// Dataset is a header row plus Rows x len(Headers) string values.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// FromTable lays cells out on the table's grid. Cells outside the table's
// dimensions are dropped. With raw unset values are rendered the way the
// column format displays them.
func FromTable(table *api.Table, cells []api.Cell, raw bool) *Dataset {
	ds := &Dataset{
		Headers: make([]string, table.Cols),
		Rows:    make([][]string, table.Rows),
	}
	formats := make([]cellformat.Format, table.Cols)
	for c := range table.Cols {
		col := table.Column(c)
		formats[c] = col.Format
		if col.Header != nil && *col.Header != "" {
			ds.Headers[c] = *col.Header
		} else {
			ds.Headers[c] = ColumnName(c)
		}
	}
	for r := range ds.Rows {
		ds.Rows[r] = make([]string, table.Cols)
	}
	for _, cell := range cells {
		if cell.Row < 0 || cell.Row >= table.Rows || cell.Col < 0 || cell.Col >= table.Cols {
			continue
		}
		v := cell.Text()
		if !raw {
			v = cellformat.Display(formats[cell.Col], v)
		}
		ds.Rows[cell.Row][cell.Col] = v
	}
	return ds
}

// ColumnName is the spreadsheet letter for a zero-based column.
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return fmt.Sprintf("C%d", col+1)
	}
	return name
}

// CellName is the A1 reference for a zero-based row and column.
func CellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return name
}

// ParseCellName converts an A1 reference into a zero-based row and column.
func ParseCellName(name string) (row, col int, err error) {
	c, r, err := excelize.CellNameToCoordinates(strings.ToUpper(strings.TrimSpace(name)))
	if err != nil {
		return 0, 0, fmt.Errorf("cell %q: %w", name, err)
	}
	return r - 1, c - 1, nil
}

// Values returns the header and rows as a single matrix.
func (ds *Dataset) Values() [][]string {
	out := make([][]string, 0, len(ds.Rows)+1)
	out = append(out, ds.Headers)
	return append(out, ds.Rows...)
}

func WriteCSV(w io.Writer, ds *Dataset, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	for _, row := range ds.Values() {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	for r, row := range ds.Values() {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(DefaultSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
