package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cachepkg "github.com/pario-ai/quelldemo/pkg/cache/sqlite"
	"github.com/pario-ai/quelldemo/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the backend query cache",
	}

	open := func() (*cachepkg.Cache, error) {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return nil, err
		}
		return cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", stats.Entries)
			return nil
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached queries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entries, err := c.List(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tCREATED\tEXPIRES\tHITS\tBYTES\tQUERY")
			for _, e := range entries {
				expires := "never"
				if !e.ExpiresAt.IsZero() {
					expires = e.ExpiresAt.Format("2006-01-02T15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					e.QueryHash[:min(12, len(e.QueryHash))], e.CreatedAt.Format("2006-01-02T15:04:05"), expires, e.Hits, e.Size, truncate(e.Query, 60))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(context.Background(), expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Fprintln(cmd.OutOrStdout(), "Expired cache entries cleared.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.AddCommand(statsCmd, listCmd, clearCmd)
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
