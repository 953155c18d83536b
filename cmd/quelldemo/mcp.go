package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/quelldemo/pkg/demo"
	"github.com/pario-ai/quelldemo/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve a caching demo session as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctrl, err := demo.Build(cfg, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.New(ctrl, version, nil).Run(ctx, os.Stdin, os.Stdout)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
