package cmd

import (
	"fmt"
	"io"
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/app"
	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/export"
	"online_tables_lite/internal/notifications"
	"online_tables_lite/internal/session"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <link|slug>",
	Short: "Stream changes made by other collaborators",
	Long: `Stream changes made by other collaborators until interrupted.
With NTFY_ENABLED=true each burst of changes is also pushed to the ntfy topic.`,
	GroupID: "table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := tableRef(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		ntfy := app.InitializeNotificationClient()
		defer ntfy.Wait()

		remote := make(chan []api.Cell, 64)
		changed := make(chan struct{}, 1)
		sess, err := session.Open(ctx, newClient(), ref.Slug, ref.Token, session.Options{
			Debounce:   settings.Debounce,
			Resilience: config.WatchResilienceConfig,
			Dial:       dialer(),
			OnRemote: func(cells []api.Cell) {
				select {
				case remote <- cells:
				case <-ctx.Done():
				}
			},
			OnChange: func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			},
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		out := cmd.OutOrStdout()
		t := sess.Table()
		fmt.Fprintf(out, "watching %s (%d columns x %d rows), Ctrl-C to stop\n", tableTitle(&t), t.Cols, t.Rows)

		connected := false
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				ed := sess.Editor()
				if now := ed.IsConnected(); now != connected {
					connected = now
					if connected {
						fmt.Fprintln(out, "live")
					} else if err := ed.LastError(); err != nil {
						fmt.Fprintf(out, "reconnecting: %v\n", err)
					}
				}
			case cells := <-remote:
				t := sess.Table()
				changes := describeChanges(&t, cells)
				printChanges(out, changes)
				ntfy.NotifyRemoteChanges(ctx, tableTitle(&t), changes)
			}
		}
	},
}

func describeChanges(t *api.Table, cells []api.Cell) []notifications.Change {
	changes := make([]notifications.Change, 0, len(cells))
	for _, c := range cells {
		col := t.Column(c.Col)
		header := ""
		if col.Header != nil {
			header = *col.Header
		}
		changes = append(changes, notifications.Change{
			Row:    c.Row,
			Col:    c.Col,
			Header: header,
			Value:  cellformat.Display(col.Format, c.Text()),
		})
	}
	return changes
}

func printChanges(out io.Writer, changes []notifications.Change) {
	stamp := time.Now().Format("15:04:05")
	for _, ch := range changes {
		ref := export.CellName(ch.Row, ch.Col)
		if ch.Header != "" {
			ref += " (" + ch.Header + ")"
		}
		if ch.Value == "" {
			fmt.Fprintf(out, "%s  %s cleared\n", stamp, ref)
			continue
		}
		fmt.Fprintf(out, "%s  %s = %s\n", stamp, ref, ch.Value)
	}
	log.Debug().Int("changes", len(changes)).Msg("Printed remote changes")
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
