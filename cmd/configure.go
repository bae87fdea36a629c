package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/export"
	"online_tables_lite/internal/validation"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config <link|slug>",
	Short: "Change a table's title, description, rows or column settings",
	Long: `Change table settings. Requires the admin token.

Columns are configured with repeated --column flags of the form
IDX:key=value[,key=value...] where key is header, width (pixels) or format
(text, date, timerange). IDX is zero-based or a column letter:

  otl config <link> --title Shifts --column A:header=Day,format=date,width=160`,
	GroupID: "structure",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}

		var req api.TableConfigRequest
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			req.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			req.Description = &v
		}
		if flags.Changed("rows") {
			v, _ := flags.GetInt("rows")
			req.Rows = &v
		}
		if flags.Changed("fixed-rows") {
			v, _ := flags.GetBool("fixed-rows")
			req.FixedRows = &v
		}
		values, _ := flags.GetStringArray("column")
		for _, value := range values {
			col, err := parseColumnFlag(value)
			if err != nil {
				return err
			}
			req.Columns = append(req.Columns, col)
		}
		if req.Title == nil && req.Description == nil && req.Rows == nil && req.FixedRows == nil && len(req.Columns) == 0 {
			return fmt.Errorf("nothing to change: pass at least one of --title, --description, --rows, --fixed-rows, --column")
		}
		if err := validation.TableConfig(req); err != nil {
			return err
		}

		client := newClient()
		resp, err := sendOnce(cmd.Context(), func(ctx context.Context) (*api.TableConfigResponse, error) {
			return client.UpdateConfig(ctx, ref.Slug, ref.Token, req)
		})
		if err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		log.Info().Str("slug", ref.Slug).Int("columns", len(req.Columns)).Msg("Updated table config")

		out := cmd.OutOrStdout()
		if resp.Message != "" {
			fmt.Fprintln(out, resp.Message)
		} else {
			fmt.Fprintln(out, "updated")
		}
		fmt.Fprintf(out, "limits: %d rows, %d columns\n", resp.Limits.MaxRows, resp.Limits.MaxCols)
		return nil
	},
}

// parseColumnFlag parses IDX:key=value[,key=value...].
func parseColumnFlag(flag string) (api.ColumnConfigUpdate, error) {
	idxPart, rest, _ := strings.Cut(flag, ":")
	idx, err := parseColumnIndex(strings.TrimSpace(idxPart))
	if err != nil {
		return api.ColumnConfigUpdate{}, fmt.Errorf("--column %q: %w", flag, err)
	}
	col := api.ColumnConfigUpdate{Idx: idx}
	if strings.TrimSpace(rest) == "" {
		return col, fmt.Errorf("--column %q: no settings given", flag)
	}

	for _, kv := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return col, fmt.Errorf("--column %q: %q is not key=value", flag, kv)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "header":
			col.Header = &value
		case "width":
			w, err := strconv.Atoi(value)
			if err != nil {
				return col, fmt.Errorf("--column %q: width must be a number of pixels", flag)
			}
			col.Width = &w
		case "format":
			f, err := cellformat.ParseFormat(value)
			if err != nil {
				return col, fmt.Errorf("--column %q: %w", flag, err)
			}
			col.Format = &f
		default:
			return col, fmt.Errorf("--column %q: unknown setting %q", flag, key)
		}
	}
	return col, nil
}

// parseColumnIndex accepts a zero-based number or a column letter.
func parseColumnIndex(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("column index must not be negative")
		}
		return n, nil
	}
	_, col, err := export.ParseCellName(s + "1")
	if err != nil {
		return 0, fmt.Errorf("%q is neither a column index nor a column letter", s)
	}
	return col, nil
}

func init() {
	configCmd.Flags().String("title", "", "new title")
	configCmd.Flags().String("description", "", "new description")
	configCmd.Flags().Int("rows", 0, "new row count")
	configCmd.Flags().Bool("fixed-rows", false, "prevent editors from adding rows")
	configCmd.Flags().StringArray("column", nil, "column setting IDX:key=value[,key=value...] (repeatable)")
	rootCmd.AddCommand(configCmd)
}
