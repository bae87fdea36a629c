package cmd

import (
	"fmt"

	"online_tables_lite/internal/export"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	showHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	showCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	showBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var showCmd = &cobra.Command{
	Use:     "show <link|slug>",
	Aliases: []string{"cat"},
	Short:   "Print a table",
	GroupID: "table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")

		t, err := loadTable(cmd.Context(), newClient(), ref)
		if err != nil {
			return err
		}
		ds := export.FromTable(t, t.Cells, raw)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, lipgloss.NewStyle().Bold(true).Render(tableTitle(t)))
		if t.Description != nil && *t.Description != "" {
			fmt.Fprintln(out, *t.Description)
		}
		fmt.Fprintln(out, renderDataset(ds))
		return nil
	},
}

// renderDataset draws the dataset with a leading row-number column.
func renderDataset(ds *export.Dataset) string {
	rows := make([][]string, len(ds.Rows))
	for r, row := range ds.Rows {
		rows[r] = append([]string{fmt.Sprint(r + 1)}, row...)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(showBorderStyle).
		Headers(append([]string{""}, ds.Headers...)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return showHeaderStyle
			}
			return showCellStyle
		}).
		String()
}

func init() {
	showCmd.Flags().Bool("raw", false, "print stored values instead of formatted ones")
	rootCmd.AddCommand(showCmd)
}
