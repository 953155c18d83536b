package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/quelldemo/pkg/config"
	"github.com/pario-ai/quelldemo/pkg/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quelldemo",
		Short:         "Compare client-side and server-side GraphQL caching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newReplCmd(),
		newCacheCmd(),
		newMCPCmd(),
	)
	return root
}

// setup loads the config at path and installs the process logger. The
// returned function closes the log output.
func setup(path string) (*config.Config, func() error, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, closeLog, nil
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", config.DefaultPath, "path to config file")
}
