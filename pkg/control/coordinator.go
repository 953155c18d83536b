package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// LocalClearer is the clear side of the local cache.
type LocalClearer interface {
	Clear()
}

// RemoteClearer is the clear side of the remote cache.
type RemoteClearer interface {
	ClearCache(ctx context.Context) error
}

// Resetter is the reset side of the metrics store. *metrics.Store implements it.
type Resetter interface {
	ResetAfter(fn func() error) error
}

// Coordinator invalidates cache layers and resets metrics.
type Coordinator struct {
	local  LocalClearer
	remote RemoteClearer
	store  Resetter
	logger *slog.Logger
}

// New creates a Coordinator. A nil logger falls back to slog.Default().
func New(local LocalClearer, remote RemoteClearer, store Resetter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{local: local, remote: remote, store: store, logger: logger}
}

// ClearActive clears the local cache and, in server mode, the remote cache.
func (c *Coordinator) ClearActive(ctx context.Context, mode models.Mode) error {
	c.local.Clear()
	if mode != models.ModeServer {
		c.logger.Info("cleared client cache")
		return nil
	}
	if err := c.clearRemote(ctx); err != nil {
		return err
	}
	c.logger.Info("cleared client and server cache")
	return nil
}

// ClearAll clears both cache layers regardless of mode. It runs on every
// mode change so that no hit is attributed to a cache filled under the
// other mode.
func (c *Coordinator) ClearAll(ctx context.Context) error {
	c.local.Clear()
	if err := c.clearRemote(ctx); err != nil {
		return err
	}
	c.logger.Info("cleared both caches")
	return nil
}

// ResetAll clears the active caches and zeroes the metrics as one step:
// no submission is recorded, and no snapshot taken, between the two. The
// metrics are reset even if clearing the remote cache fails.
func (c *Coordinator) ResetAll(ctx context.Context, mode models.Mode) error {
	return c.store.ResetAfter(func() error {
		return c.ClearActive(ctx, mode)
	})
}

func (c *Coordinator) clearRemote(ctx context.Context) error {
	if c.remote == nil {
		return errors.New("no remote cache configured")
	}
	if err := c.remote.ClearCache(ctx); err != nil {
		c.logger.Warn("clear server cache failed", "err", err)
		return fmt.Errorf("clear server cache: %w", err)
	}
	return nil
}
