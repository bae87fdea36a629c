package cmd

import (
	"fmt"
	"os"

	"online_tables_lite/internal/app"
	"online_tables_lite/internal/export"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <link|slug>",
	Short: "Export a table to CSV, XLSX or Google Sheets",
	Long: `Export a table.

  otl export <link> --format csv [-o out.csv]          (stdout by default)
  otl export <link> --format xlsx -o out.xlsx
  otl export <link> --format sheets --spreadsheet ID [--sheet Sheet1]

CSV uses CSV_DELIMITER (default ';'). Sheets uses GOOGLE_CREDENTIALS_FILE.`,
	GroupID: "table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		format, _ := flags.GetString("format")
		output, _ := flags.GetString("output")
		raw, _ := flags.GetBool("raw")
		spreadsheetID, _ := flags.GetString("spreadsheet")
		sheet, _ := flags.GetString("sheet")

		switch format {
		case "csv":
		case "xlsx":
			if output == "" {
				return fmt.Errorf("--output is required for xlsx")
			}
		case "sheets":
			if spreadsheetID == "" {
				return fmt.Errorf("--spreadsheet is required for sheets")
			}
		default:
			return fmt.Errorf("unknown format %q (csv, xlsx, sheets)", format)
		}

		t, err := loadTable(cmd.Context(), newClient(), ref)
		if err != nil {
			return err
		}
		ds := export.FromTable(t, t.Cells, raw)

		switch format {
		case "csv":
			if output == "" {
				return export.WriteCSV(cmd.OutOrStdout(), ds, settings.CSVDelimiter)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.WriteCSV(f, ds, settings.CSVDelimiter); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case "xlsx":
			if err := export.WriteXLSX(output, ds); err != nil {
				return err
			}
		case "sheets":
			client, err := app.InitializeSheetsClient(cmd.Context(), settings)
			if err != nil {
				return err
			}
			if err := client.WriteDataset(cmd.Context(), spreadsheetID, sheet, ds); err != nil {
				return err
			}
			output = spreadsheetID + "/" + sheet
		}

		log.Info().Str("slug", ref.Slug).Str("format", format).Int("rows", len(ds.Rows)).Msg("Exported table")
		if output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows to %s\n", len(ds.Rows), output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "csv, xlsx or sheets")
	exportCmd.Flags().StringP("output", "o", "", "output file")
	exportCmd.Flags().Bool("raw", false, "export stored values instead of formatted ones")
	exportCmd.Flags().String("spreadsheet", "", "Google spreadsheet ID")
	exportCmd.Flags().String("sheet", export.DefaultSheet, "sheet name")
	rootCmd.AddCommand(exportCmd)
}
