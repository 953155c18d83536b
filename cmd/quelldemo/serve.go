package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cachepkg "github.com/pario-ai/quelldemo/pkg/cache/sqlite"
	"github.com/pario-ai/quelldemo/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		origin     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the caching GraphQL demo backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			if listen != "" {
				cfg.Listen = listen
			}
			if origin != "" {
				cfg.OriginURL = origin
			}

			var cache *cachepkg.Cache
			if cfg.Cache.Enabled {
				cache, err = cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = cache.Close() }()
			}

			srv, err := server.New(cfg, cache, slog.Default())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("starting quelldemo backend", "config", configPath, "cache", cfg.Cache.Enabled)
			return srv.ListenAndServe(ctx)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&origin, "origin", "", "origin GraphQL URL (overrides config)")
	return cmd
}
