package cmd

import (
	"fmt"

	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/export"
	"online_tables_lite/internal/session"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <link|slug> <cell> [value]",
	Short: "Write one cell, e.g. otl set <link> B3 \"13.5.2025\"",
	Long: `Write one cell addressed in A1 notation. The value is normalised for the
column's format (dates accept D.M.YYYY, time ranges D.M.YYYY HH:MM-HH:MM).
Omitting the value clears the cell.`,
	GroupID: "table",
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}
		row, col, err := export.ParseCellName(args[1])
		if err != nil {
			return err
		}
		input := ""
		if len(args) == 3 {
			input = args[2]
		}

		sess, err := session.Open(cmd.Context(), newClient(), ref.Slug, ref.Token, session.Options{
			Debounce:   settings.Debounce,
			Resilience: config.DefaultResilienceConfig,
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		t := sess.Table()
		if row >= t.Rows || col >= t.Cols {
			return fmt.Errorf("%s is outside the table (%d columns x %d rows)", export.CellName(row, col), t.Cols, t.Rows)
		}
		format := t.Column(col).Format
		value, err := cellformat.Normalize(format, input)
		if err != nil {
			return err
		}

		ed := sess.Editor()
		ed.Set(row, col, value)
		if err := ed.FlushNow(); err != nil {
			return fmt.Errorf("save %s: %w", export.CellName(row, col), err)
		}

		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", export.CellName(row, col))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", export.CellName(row, col), cellformat.Display(format, value))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
