package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upb/tracking-bridge/repositories/postgres"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies all pending embedded migrations to the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Database.Validate(); err != nil {
			return err
		}

		db, err := postgres.NewDB(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.RunMigrations(cmd.Context()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
}
