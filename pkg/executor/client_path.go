package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// LocalCache is the client-side cache collaborator.
type LocalCache interface {
	Execute(ctx context.Context, endpoint, query string, limits models.LimitConfig) (json.RawMessage, bool, error)
	Clear()
}

// ClientPath runs queries through the local cache.
type ClientPath struct {
	cache    LocalCache
	endpoint string
}

// NewClientPath creates a ClientPath that fills cache from endpoint.
func NewClientPath(cache LocalCache, endpoint string) *ClientPath {
	return &ClientPath{cache: cache, endpoint: endpoint}
}

// Run executes query through the local cache and measures the call.
func (p *ClientPath) Run(ctx context.Context, query models.QueryRecord, limits models.LimitConfig) (models.ExecutionResult, time.Duration, error) {
	start := time.Now()
	data, hit, err := p.cache.Execute(ctx, p.endpoint, query.Text, limits)
	elapsed := time.Since(start)
	if err != nil {
		return models.ExecutionResult{}, elapsed, invalid(fmt.Errorf("client path: %w", err))
	}
	if !validPayload(data) {
		return models.ExecutionResult{}, elapsed, invalid(fmt.Errorf("client path: %w", ErrShapeMismatch))
	}
	return models.ExecutionResult{Data: data, WasHit: hit}, elapsed, nil
}
