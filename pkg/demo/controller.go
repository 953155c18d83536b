// Package demo ties the caching-mode toggle, cost limits, execution router
// and cache controls into one interactive session.
package demo

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pario-ai/quelldemo/pkg/control"
	"github.com/pario-ai/quelldemo/pkg/metrics"
	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/router"
)

// Options configures a Controller.
type Options struct {
	Router      *router.Router
	Coordinator *control.Coordinator
	Store       *metrics.Store
	Samples     *Samples
	Mode        models.Mode
	Limits      models.LimitConfig
	Logger      *slog.Logger
}

// Controller owns the session state: caching mode, cost limits and the
// selected sample. It is safe for concurrent use.
type Controller struct {
	mu       sync.RWMutex
	mode     models.Mode
	limits   models.LimitConfig
	selected string

	router  *router.Router
	coord   *control.Coordinator
	store   *metrics.Store
	samples *Samples
	logger  *slog.Logger
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Router == nil || opts.Coordinator == nil || opts.Store == nil {
		return nil, errors.New("demo: router, coordinator and store are required")
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, err
	}
	if opts.Samples == nil {
		opts.Samples = NewSamples()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		mode:     opts.Mode,
		limits:   opts.Limits,
		selected: DefaultSampleLabel,
		router:   opts.Router,
		coord:    opts.Coordinator,
		store:    opts.Store,
		samples:  opts.Samples,
		logger:   opts.Logger,
	}, nil
}

// Mode returns the current caching mode.
func (c *Controller) Mode() models.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Limits returns the current cost limits.
func (c *Controller) Limits() models.LimitConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// SetMode switches the caching mode. Both caches are cleared before the
// switch completes, and submissions started afterwards wait for that.
// Switching to the current mode does nothing. The mode changes even if
// clearing the remote cache fails; that error is returned.
func (c *Controller) SetMode(ctx context.Context, mode models.Mode) error {
	if mode != models.ModeClient && mode != models.ModeServer {
		return errors.New("demo: unknown mode " + mode.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setModeLocked(ctx, mode)
}

// Toggle flips the caching mode and returns the new one.
func (c *Controller) Toggle(ctx context.Context) (models.Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.setModeLocked(ctx, c.mode.Toggle())
	return c.mode, err
}

// setModeLocked requires c.mu held for writing.
func (c *Controller) setModeLocked(ctx context.Context, mode models.Mode) error {
	if mode == c.mode {
		return nil
	}
	err := c.coord.ClearAll(ctx)
	c.logger.Info("caching mode changed", "from", c.mode.String(), "to", mode.String())
	c.mode = mode
	return err
}

// SetLimits replaces the cost limits after validating them.
func (c *Controller) SetLimits(limits models.LimitConfig) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = limits
	return nil
}

// Submit runs query under the current mode and limits. The submission is
// not cancelled by a later mode change; its result is recorded under the
// mode it was dispatched with.
func (c *Controller) Submit(ctx context.Context, query models.QueryRecord) (*models.Outcome, error) {
	c.mu.RLock()
	mode, limits := c.mode, c.limits
	c.mu.RUnlock()

	return c.router.Submit(ctx, mode, query, limits)
}

// SubmitSample submits the sample with label, or the selected sample when
// label is empty.
func (c *Controller) SubmitSample(ctx context.Context, label string) (*models.Outcome, error) {
	if label == "" {
		label = c.Selected()
	}
	q, err := c.samples.Get(label)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, q)
}

// Select makes label the sample used by SubmitSample("").
func (c *Controller) Select(label string) error {
	if _, err := c.samples.Get(label); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = label
	return nil
}

// Selected returns the selected sample label.
func (c *Controller) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Samples returns the sample set.
func (c *Controller) Samples() *Samples {
	return c.samples
}

// ClearActive clears the cache layer(s) of the current mode.
func (c *Controller) ClearActive(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coord.ClearActive(ctx, c.mode)
}

// ResetAll clears the active cache layer(s) and zeroes the timings and
// hit/miss counts.
func (c *Controller) ResetAll(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coord.ResetAll(ctx, c.mode)
}

// Snapshot returns the current metrics.
func (c *Controller) Snapshot() models.Snapshot {
	return c.store.Snapshot()
}
