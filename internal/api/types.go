package api

import "online_tables_lite/internal/cellformat"

// Column describes one table column as configured by the table admin.
type Column struct {
	Idx    int               `json:"idx"`
	Header *string           `json:"header"`
	Width  *int              `json:"width"`
	Format cellformat.Format `json:"format,omitempty"`
}

// Cell is a single cell on the wire. A nil Value clears the cell.
type Cell struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value *string `json:"value"`
}

// Text returns the cell value, or "" when the cell carries no value.
func (c Cell) Text() string {
	if c.Value == nil {
		return ""
	}
	return *c.Value
}

// NewCell builds a wire cell, mapping "" to a null value.
func NewCell(row, col int, value string) Cell {
	if value == "" {
		return Cell{Row: row, Col: col}
	}
	return Cell{Row: row, Col: col, Value: &value}
}

type Table struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Cols        int      `json:"cols"`
	Rows        int      `json:"rows"`
	FixedRows   bool     `json:"fixed_rows"`
	Columns     []Column `json:"columns"`
	Cells       []Cell   `json:"cells"`
}

// Column returns the column configuration for idx, or a default text column.
func (t *Table) Column(idx int) Column {
	for _, c := range t.Columns {
		if c.Idx == idx {
			return c
		}
	}
	return Column{Idx: idx, Format: cellformat.Text}
}

type CreateTableRequest struct {
	Title       string `json:"title,omitempty" validate:"max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Cols        int    `json:"cols,omitempty" validate:"omitempty,min=1,max=64"`
	Rows        int    `json:"rows,omitempty" validate:"omitempty,min=1,max=500"`
}

type CreateTableResponse struct {
	Slug       string `json:"slug"`
	AdminToken string `json:"admin_token"`
	EditToken  string `json:"edit_token"`
}

type CellBatchUpdateRequest struct {
	Cells []Cell `json:"cells" validate:"required,min=1,dive"`
}

type CellBatchUpdateResponse struct {
	Success      bool `json:"success"`
	UpdatedCells int  `json:"updated_cells"`
}

type ColumnConfigUpdate struct {
	Idx    int                `json:"idx" validate:"min=0"`
	Header *string            `json:"header,omitempty" validate:"omitempty,max=200"`
	Width  *int               `json:"width,omitempty" validate:"omitempty,min=50,max=800"`
	Format *cellformat.Format `json:"format,omitempty" validate:"omitempty,oneof=text date timerange"`
}

type TableConfigRequest struct {
	Title       *string              `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	Rows        *int                 `json:"rows,omitempty" validate:"omitempty,min=1,max=500"`
	FixedRows   *bool                `json:"fixed_rows,omitempty"`
	Columns     []ColumnConfigUpdate `json:"columns,omitempty" validate:"omitempty,dive"`
}

type Limits struct {
	MaxRows int `json:"max_rows"`
	MaxCols int `json:"max_cols"`
}

type TableConfigResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Limits  Limits `json:"limits"`
}

// CountRequest is the body of the add/remove rows and columns endpoints.
type CountRequest struct {
	Count int `json:"count" validate:"min=1,max=100"`
}

type RowColumnResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	NewRows *int   `json:"new_rows,omitempty"`
	NewCols *int   `json:"new_cols,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// AppConfig is the localized front-end configuration: key -> locale -> value.
type AppConfig map[string]map[string]*string
