package cmd

import (
	"errors"
	"fmt"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/app"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/session"
	"online_tables_lite/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:     "edit <link|slug>",
	Aliases: []string{"open"},
	Short:   "Edit a table interactively with live updates",
	Long: `Open the table in a full-screen grid. Edits are saved in batches after a
short pause (OTL_DEBOUNCE) and changes from other collaborators appear live.
Logs go to OTL_LOG_FILE while the grid is on screen.`,
	GroupID: "table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}

		logs, err := app.RedirectLogs(settings.LogFile)
		if err != nil {
			return err
		}
		defer logs.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		ntfy := app.InitializeNotificationClient()
		defer ntfy.Wait()

		notifier := tui.NewNotifier()
		sess, err := session.Open(ctx, newClient(), ref.Slug, ref.Token, session.Options{
			Debounce:   settings.Debounce,
			Resilience: config.DefaultResilienceConfig,
			Dial:       dialer(),
			OnChange:   notifier.Notify,
			OnFlushError: func(err error, cells []api.Cell) {
				ntfy.NotifyFailedSave(ctx, ref.Slug, err, len(cells))
			},
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		program := tea.NewProgram(tui.New(sess, notifier), tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			// terminated from outside; save what we can before leaving
			if ferr := sess.Editor().FlushNow(); ferr != nil {
				return fmt.Errorf("some edits were not saved: %w", ferr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("run grid: %w", err)
		}
		if m, ok := final.(tui.Model); ok && m.QuitErr() != nil {
			log.Error().Err(m.QuitErr()).Msg("Quit with unsaved edits")
			return fmt.Errorf("some edits were not saved: %w", m.QuitErr())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
