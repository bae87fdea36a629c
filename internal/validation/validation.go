// Package validation checks requests client-side before they are sent. The
// bounds are sanity limits only; the backend's declared limits are
// authoritative.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"online_tables_lite/internal/api"

	"github.com/go-playground/validator/v10"
)

// Errors maps a field path (e.g. "Columns[0].Width") to a message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func CreateTable(req api.CreateTableRequest) error {
	return check(req)
}

func TableConfig(req api.TableConfigRequest) error {
	if err := check(req); err != nil {
		return err
	}
	seen := make(map[int]bool, len(req.Columns))
	for i, col := range req.Columns {
		if seen[col.Idx] {
			return Errors{fmt.Sprintf("Columns[%d].Idx", i): fmt.Sprintf("column %d configured twice", col.Idx)}
		}
		seen[col.Idx] = true
	}
	return nil
}

func Count(count int) error {
	return check(api.CountRequest{Count: count})
}

func CellBatch(req api.CellBatchUpdateRequest) error {
	if err := check(req); err != nil {
		return err
	}
	for i, c := range req.Cells {
		if c.Row < 0 || c.Col < 0 {
			return Errors{fmt.Sprintf("Cells[%d]", i): "row and column must be non-negative"}
		}
	}
	return nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", v, err)
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out
}

// fieldPath strips the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
