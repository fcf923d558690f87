package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"drrm-api/internal/migrate"
	"drrm-api/internal/store"
	"drrm-api/internal/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the pages table and seed default pages",
		Long: `Create the pages table if it does not exist and insert the
default login and admin pages. Existing rows are left untouched.

Examples:
  drrmctl migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			db, err := utils.OpenPostgresFromEnv()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := migrate.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			list, err := store.AttachDB(db).ListPages(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tUPDATED")
			for _, p := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Type, p.Title, p.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
