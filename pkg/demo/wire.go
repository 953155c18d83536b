package demo

import (
	"fmt"
	"log/slog"

	"github.com/pario-ai/quelldemo/pkg/cache/local"
	"github.com/pario-ai/quelldemo/pkg/config"
	"github.com/pario-ai/quelldemo/pkg/control"
	"github.com/pario-ai/quelldemo/pkg/executor"
	"github.com/pario-ai/quelldemo/pkg/metrics"
	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/remote"
	"github.com/pario-ai/quelldemo/pkg/router"
)

// Build wires a Controller from configuration: a remote client for the
// configured endpoints, a local LRU cache filled through it, both
// execution paths, a fresh metrics store and the coordinator.
func Build(cfg *config.Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rc := remote.New(cfg.GraphQLEndpoint, cfg.ClearCacheEndpoint, cfg.HTTPTimeout)
	lc, err := local.New(cfg.Cache.LocalMaxEntries, rc)
	if err != nil {
		return nil, fmt.Errorf("init local cache: %w", err)
	}

	store := metrics.New()
	rt := router.New(
		executor.NewClientPath(lc, cfg.GraphQLEndpoint),
		executor.NewServerPath(rc),
		store,
		logger,
	)
	coord := control.New(lc, rc, store, logger)

	overrides := make([]models.QueryRecord, 0, len(cfg.Samples))
	for _, s := range cfg.Samples {
		overrides = append(overrides, models.QueryRecord{TypeLabel: s.Label, Text: s.Query})
	}

	return New(Options{
		Router:      rt,
		Coordinator: coord,
		Store:       store,
		Samples:     NewSamples(overrides...),
		Mode:        cfg.InitialMode(),
		Limits:      cfg.Limits,
		Logger:      logger,
	})
}
