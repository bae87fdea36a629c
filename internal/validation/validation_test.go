package validation

import (
	"testing"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTable(t *testing.T) {
	assert.NoError(t, CreateTable(api.CreateTableRequest{}))
	assert.NoError(t, CreateTable(api.CreateTableRequest{Title: "Shifts", Cols: 64, Rows: 500}))

	err := CreateTable(api.CreateTableRequest{Cols: 65, Rows: 501})
	var verrs Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "must be at most 64", verrs["Cols"])
	assert.Equal(t, "must be at most 500", verrs["Rows"])
}

func TestTableConfig(t *testing.T) {
	width := 120
	format := cellformat.TimeRange
	ok := api.TableConfigRequest{Columns: []api.ColumnConfigUpdate{{Idx: 0, Width: &width, Format: &format}}}
	assert.NoError(t, TableConfig(ok))

	narrow := 10
	bad := cellformat.Format("datetime")
	err := TableConfig(api.TableConfigRequest{Columns: []api.ColumnConfigUpdate{{Idx: 1, Width: &narrow, Format: &bad}}})
	var verrs Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "must be at least 50", verrs["Columns[0].Width"])
	assert.Contains(t, verrs["Columns[0].Format"], "must be one of")

	err = TableConfig(api.TableConfigRequest{Columns: []api.ColumnConfigUpdate{{Idx: 2}, {Idx: 2}}})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs["Columns[1].Idx"], "configured twice")
}

func TestCount(t *testing.T) {
	assert.NoError(t, Count(1))
	assert.Error(t, Count(0))
	assert.Error(t, Count(101))
}

func TestCellBatch(t *testing.T) {
	assert.NoError(t, CellBatch(api.CellBatchUpdateRequest{Cells: []api.Cell{api.NewCell(0, 0, "x")}}))
	assert.Error(t, CellBatch(api.CellBatchUpdateRequest{}))
	assert.Error(t, CellBatch(api.CellBatchUpdateRequest{Cells: []api.Cell{api.NewCell(-1, 0, "x")}}))
}

func TestErrorsMessageIsSorted(t *testing.T) {
	err := Errors{"Rows": "must be at most 500", "Cols": "must be at most 64"}
	assert.Equal(t, "validation failed: Cols: must be at most 64; Rows: must be at most 500", err.Error())
}
