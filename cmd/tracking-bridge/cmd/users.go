package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/tracking-bridge/models"
	"github.com/upb/tracking-bridge/repositories"
	"github.com/upb/tracking-bridge/repositories/postgres"
)

var (
	usersLimit  int
	usersOffset int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect local users",
	Long:  `Commands for inspecting the local users created by vendor logins.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local users ordered by username",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Database.Validate(); err != nil {
			return err
		}

		db, err := postgres.NewDB(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repos := postgres.NewRepositoryFactoryWithDB(db, logger).NewRepositories()
		return listUsers(cmd.Context(), repos.Users, cmd.OutOrStdout(), usersLimit, usersOffset)
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersLimit, "limit", 100, "Maximum number of users to list")
	usersListCmd.Flags().IntVar(&usersOffset, "offset", 0, "Number of users to skip")

	usersCmd.AddCommand(usersListCmd)
}

func listUsers(ctx context.Context, users repositories.UserRepository, out io.Writer, limit, offset int) error {
	list, err := users.List(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	return printUsers(out, list)
}

func printUsers(out io.Writer, users []*models.User) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tADMIN\tLAST LOGIN")
	for _, u := range users {
		lastLogin := "never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.ID, u.Username, u.IsAdmin, lastLogin)
	}
	return tw.Flush()
}
