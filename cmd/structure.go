package cmd

import (
	"context"
	"fmt"
	"strconv"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/validation"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type structureOp func(c *api.Client, ctx context.Context, slug, token string, count int) (*api.RowColumnResponse, error)

var rowsCmd = &cobra.Command{
	Use:     "rows",
	Short:   "Add or remove rows",
	GroupID: "structure",
}

var columnsCmd = &cobra.Command{
	Use:     "columns",
	Aliases: []string{"cols"},
	Short:   "Add or remove columns",
	GroupID: "structure",
}

// structureCmd builds "<noun> add|remove <link|slug> [count]".
func structureCmd(verb, noun string, op structureOp) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <link|slug> [count]",
		Short: fmt.Sprintf("%s %s (default 1)", verb, noun),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := tableRef(args[0])
			if err != nil {
				return err
			}
			count := 1
			if len(args) == 2 {
				count, err = strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("count must be a number: %q", args[1])
				}
			}
			if err := validation.Count(count); err != nil {
				return err
			}

			client := newClient()
			resp, err := sendOnce(cmd.Context(), func(ctx context.Context) (*api.RowColumnResponse, error) {
				return op(client, ctx, ref.Slug, ref.Token, count)
			})
			if err != nil {
				return fmt.Errorf("%s %s: %w", verb, noun, err)
			}
			log.Info().Str("slug", ref.Slug).Str("op", verb+" "+noun).Int("count", count).Msg("Changed table structure")

			out := cmd.OutOrStdout()
			switch {
			case resp.NewRows != nil:
				fmt.Fprintf(out, "rows: %d\n", *resp.NewRows)
			case resp.NewCols != nil:
				fmt.Fprintf(out, "columns: %d\n", *resp.NewCols)
			case resp.Message != "":
				fmt.Fprintln(out, resp.Message)
			}
			return nil
		},
	}
}

func init() {
	rowsCmd.AddCommand(
		structureCmd("add", "rows", (*api.Client).AddRows),
		structureCmd("remove", "rows", (*api.Client).RemoveRows),
	)
	columnsCmd.AddCommand(
		structureCmd("add", "columns", (*api.Client).AddColumns),
		structureCmd("remove", "columns", (*api.Client).RemoveColumns),
	)
	rootCmd.AddCommand(rowsCmd, columnsCmd)
}
