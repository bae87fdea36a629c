package cmd

import (
	"context"
	"fmt"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/app"
	"online_tables_lite/internal/validation"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create [title]",
	Aliases: []string{"new"},
	Short:   "Create a table and print its admin and editor links",
	GroupID: "table",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := api.CreateTableRequest{}
		req.Title, _ = cmd.Flags().GetString("title")
		if len(args) > 0 {
			req.Title = args[0]
		}
		req.Description, _ = cmd.Flags().GetString("description")
		req.Cols, _ = cmd.Flags().GetInt("cols")
		req.Rows, _ = cmd.Flags().GetInt("rows")
		locale, _ := cmd.Flags().GetString("locale")

		if err := validation.CreateTable(req); err != nil {
			return err
		}

		client := newClient()
		created, err := sendOnce(cmd.Context(), func(ctx context.Context) (*api.CreateTableResponse, error) {
			return client.CreateTable(ctx, req)
		})
		if err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		log.Info().Str("slug", created.Slug).Msg("Created table")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "slug:   %s\n", created.Slug)
		fmt.Fprintf(out, "admin:  %s\n", app.BuildTableLink(settings.WebURL, locale, created.Slug, created.AdminToken))
		fmt.Fprintf(out, "editor: %s\n", app.BuildTableLink(settings.WebURL, locale, created.Slug, created.EditToken))
		return nil
	},
}

func init() {
	createCmd.Flags().String("title", "", "table title")
	createCmd.Flags().String("description", "", "table description")
	createCmd.Flags().Int("cols", 0, "number of columns (backend default when 0)")
	createCmd.Flags().Int("rows", 0, "number of rows (backend default when 0)")
	createCmd.Flags().String("locale", "", "locale segment for the printed links, e.g. en")
	rootCmd.AddCommand(createCmd)
}
