package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/remote"
)

// RemoteCache is the server-side cache collaborator.
type RemoteCache interface {
	Execute(ctx context.Context, query string, limits models.LimitConfig) (*models.QueryResponse, error)
	ClearCache(ctx context.Context) error
}

// ServerPath runs queries through the remote cache endpoint.
type ServerPath struct {
	remote RemoteCache
}

// NewServerPath creates a ServerPath.
func NewServerPath(r RemoteCache) *ServerPath {
	return &ServerPath{remote: r}
}

// Run POSTs query to the execution endpoint and measures the round trip,
// including decoding of the body. Every failure is reported as a
// QueryError; its message is the one carried by the error body when the
// remote sent one.
func (p *ServerPath) Run(ctx context.Context, query models.QueryRecord, limits models.LimitConfig) (models.ExecutionResult, time.Duration, error) {
	start := time.Now()
	resp, err := p.remote.Execute(ctx, query.Text, limits)
	elapsed := time.Since(start)
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) && se.Message != "" {
			return models.ExecutionResult{}, elapsed, &QueryError{Message: se.Message, Err: err}
		}
		return models.ExecutionResult{}, elapsed, invalid(fmt.Errorf("server path: %w", err))
	}
	if resp == nil || !validPayload(resp.Data) {
		return models.ExecutionResult{}, elapsed, invalid(fmt.Errorf("server path: %w", ErrShapeMismatch))
	}
	return models.ExecutionResult{Data: resp.Data, WasHit: resp.Cached}, elapsed, nil
}
