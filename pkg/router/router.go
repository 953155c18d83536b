package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pario-ai/quelldemo/pkg/executor"
	"github.com/pario-ai/quelldemo/pkg/models"
)

// Recorder receives the outcome of every submission. *metrics.Store
// implements it.
type Recorder interface {
	RecordSuccess(elapsedMs float64, typeLabel string, wasHit bool)
	RecordError(message string)
}

// SubmitError is a failed submission. Mode is the mode it was dispatched
// under, which may differ from the current one after a toggle.
type SubmitError struct {
	Mode models.Mode
	Err  error
}

func (e *SubmitError) Error() string { return e.Err.Error() }

func (e *SubmitError) Unwrap() error { return e.Err }

// Router dispatches submissions to the executor matching the caching mode
// and records each outcome exactly once.
type Router struct {
	paths    map[models.Mode]executor.Executor
	recorder Recorder
	logger   *slog.Logger
}

// New creates a Router. A nil logger falls back to slog.Default().
func New(client, server executor.Executor, recorder Recorder, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		paths: map[models.Mode]executor.Executor{
			models.ModeClient: client,
			models.ModeServer: server,
		},
		recorder: recorder,
		logger:   logger,
	}
}

// Resolve returns the executor for mode.
func (r *Router) Resolve(mode models.Mode) (executor.Executor, error) {
	ex, ok := r.paths[mode]
	if !ok || ex == nil {
		return nil, fmt.Errorf("no executor for %s", mode)
	}
	return ex, nil
}

// Submit runs query under mode. On success the timing and hit/miss are
// recorded and the outcome returned; on failure the user-facing message
// is appended to the error log and the underlying error is logged and
// returned as a *SubmitError.
func (r *Router) Submit(ctx context.Context, mode models.Mode, query models.QueryRecord, limits models.LimitConfig) (*models.Outcome, error) {
	ex, err := r.Resolve(mode)
	if err != nil {
		return nil, r.fail(query, mode, err)
	}

	res, elapsed, err := ex.Run(ctx, query, limits)
	if err != nil {
		return nil, r.fail(query, mode, err)
	}

	out := &models.Outcome{
		Result:    res,
		Elapsed:   elapsed,
		Mode:      mode,
		TypeLabel: query.TypeLabel,
	}
	r.recorder.RecordSuccess(out.ElapsedMs(), query.TypeLabel, res.WasHit)
	r.logger.Debug("query executed",
		"mode", mode.String(),
		"label", query.TypeLabel,
		"hit", res.WasHit,
		"elapsed", elapsed,
	)
	return out, nil
}

func (r *Router) fail(query models.QueryRecord, mode models.Mode, err error) error {
	msg := executor.UserMessage(err)
	r.recorder.RecordError(msg)
	r.logger.Warn("query failed",
		"mode", mode.String(),
		"label", query.TypeLabel,
		"message", msg,
		"err", err,
	)
	return &SubmitError{Mode: mode, Err: err}
}
