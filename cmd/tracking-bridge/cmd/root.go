package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/config"
	"github.com/upb/tracking-bridge/internal/observability"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tracking-bridge",
	Short: "Login bridge and proxy for the WhatsGPS tracking API",
	Long: `tracking-bridge exchanges WhatsGPS vendor logins for locally signed
credentials, keeps the vendor session server-side and proxies tracking
calls with the vendor token injected.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Read()
		applyFlags(cmd, cfg)

		var err error
		logger, err = observability.NewLogger(cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags override the environment
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (env: LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(usersCmd)
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetString("db-url"); v != "" {
		c.Database.ConnectionString = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.Observability.LogLevel = v
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
