package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"drrm-api/internal/pages"
	"drrm-api/internal/store"
	"drrm-api/internal/utils"

	"github.com/spf13/cobra"
)

func newPageCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "page <type>",
		Short: "Show a page the way the dashboard renders it",
		Long: `Fetch a page through the HTTP API and print its title, content
and where the content came from (database, fallback or message).

Examples:
  drrmctl page login
  drrmctl page admin --api http://localhost:9999/api`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := pages.NewClient(baseURL).Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n(source: %s)\n\n%s\n", c.Title, c.Source, c.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "api", envOr("DRRM_API_URL", "http://localhost:9999/api"), "API base URL")
	cmd.AddCommand(newPageSetCmd())
	return cmd
}

func newPageSetCmd() *cobra.Command {
	var title, file string
	cmd := &cobra.Command{
		Use:   "set <type>",
		Short: "Create or replace a page in the database",
		Long: `Write a page row directly to the database. Content is read from
--file, or from stdin when --file is "-".

Examples:
  drrmctl page set login --title "Login" --file login.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			var content []byte
			var err error
			if file == "-" {
				content, err = readAll(cmd.InOrStdin())
			} else {
				content, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			if title == "" {
				title = pages.DefaultTitle(args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			db, err := utils.OpenPostgresFromEnv()
			if err != nil {
				return err
			}
			defer db.Close()
			p, err := store.AttachDB(db).UpsertPage(ctx, args[0], title, string(content))
			if err != nil {
				return err
			}
			// 服务端 Redis 缓存按 TTL 过期，这里同步清理
			if rc := utils.OpenRedisFromEnv(); rc != nil {
				defer rc.Close()
				_ = pages.NewService(nil, rc, 0).Invalidate(ctx, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved page %q (id %d)\n", p.Type, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "page title (default derived from type)")
	cmd.Flags().StringVar(&file, "file", "", "content file, - for stdin")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
