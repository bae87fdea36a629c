package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/app"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/realtime"
	"online_tables_lite/internal/retry"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	settings app.Settings

	apiURLFlag string
	tokenFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "otl",
	Short: "Command-line client for Online Tables Lite",
	Long: `otl - create, edit and watch shared online tables from the terminal.

Tables are addressed by their share link (https://host/table/<slug>?t=<token>)
or by slug together with --token / OTL_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		app.SetupEnvironment()
		s, err := app.LoadSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("api") {
			s.APIURL = strings.TrimSuffix(apiURLFlag, "/")
		}
		if cmd.Flags().Changed("token") {
			s.Token = tokenFlag
		}
		settings = s
		return nil
	},
}

// SetVersion sets the version string
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api", "", "backend base URL (default $OTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "table token when not part of the link (default $OTL_TOKEN)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "table", Title: "Table Commands:"},
		&cobra.Group{ID: "structure", Title: "Structure Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newClient() *api.Client {
	return app.InitializeClients(settings)
}

// tableRef resolves a link or slug argument and insists on a token.
func tableRef(arg string) (app.TableRef, error) {
	ref, err := app.ParseTableRef(arg, settings.Token)
	if err != nil {
		return app.TableRef{}, err
	}
	if ref.Token == "" {
		return app.TableRef{}, errors.New("no token: pass a share link with ?t=... or use --token")
	}
	return ref, nil
}

// dialer opens realtime transports against the configured backend.
func dialer() realtime.Dialer {
	return func(policy retry.Config) (realtime.Transport, error) {
		return realtime.NewSocketIOTransport(settings.APIURL, policy)
	}
}

// withAPIRetry runs an idempotent read under the API request retry policy.
func withAPIRetry[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	return retry.WithRetry(ctx, config.DefaultResilienceConfig.APIRequest, op)
}

// sendOnce issues a write exactly once; a failed write is reported, not repeated.
func sendOnce[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	if timeout := config.DefaultResilienceConfig.AdminWrite.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return op(ctx)
}

func loadTable(ctx context.Context, client *api.Client, ref app.TableRef) (*api.Table, error) {
	table, err := retry.WithRetry(ctx, config.DefaultResilienceConfig.TableLoad, func(ctx context.Context) (*api.Table, error) {
		return client.GetTable(ctx, ref.Slug, ref.Token)
	})
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", ref.Slug, err)
	}
	log.Debug().Str("slug", ref.Slug).Int("cells", len(table.Cells)).Msg("Loaded table")
	return table, nil
}

func tableTitle(table *api.Table) string {
	if table.Title != nil && *table.Title != "" {
		return *table.Title
	}
	return table.Slug
}
