package cmd

import (
	"context"
	"fmt"
	"sort"

	"online_tables_lite/internal/api"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the backend and print its front-end configuration",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		locale, _ := cmd.Flags().GetString("locale")
		client := newClient()
		out := cmd.OutOrStdout()

		health, err := withAPIRetry(cmd.Context(), func(ctx context.Context) (*api.HealthResponse, error) {
			return client.HealthCheck(ctx)
		})
		if err != nil {
			return fmt.Errorf("health check %s: %w", client.BaseURL(), err)
		}
		fmt.Fprintf(out, "%s: %s\n", client.BaseURL(), health.Status)

		cfg, err := withAPIRetry(cmd.Context(), func(ctx context.Context) (api.AppConfig, error) {
			return client.GetAppConfig(ctx)
		})
		if err != nil {
			return fmt.Errorf("app config: %w", err)
		}
		keys := make([]string, 0, len(cfg))
		for k := range cfg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := "-"
			if v := cfg[k][locale]; v != nil {
				value = *v
			}
			fmt.Fprintf(out, "  %s = %s\n", k, value)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("locale", "en", "locale of the configuration values to print")
	rootCmd.AddCommand(healthCmd)
}
