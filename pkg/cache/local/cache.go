package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pario-ai/quelldemo/pkg/graphql"
	"github.com/pario-ai/quelldemo/pkg/models"
)

// ErrInvalidQuery is returned for queries rejected before or by the endpoint.
var ErrInvalidQuery = errors.New("invalid query")

// Fetcher executes a query against an endpoint. *remote.Client implements it.
type Fetcher interface {
	ExecuteAt(ctx context.Context, endpoint, query string, limits models.LimitConfig) (*models.QueryResponse, error)
}

// Cache is a thread-safe LRU of query payloads.
type Cache struct {
	entries *lru.Cache[uint64, json.RawMessage]
	fetch   Fetcher
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a Cache holding at most maxEntries payloads.
func New(maxEntries int, fetch Fetcher) (*Cache, error) {
	entries, err := lru.New[uint64, json.RawMessage](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}
	return &Cache{entries: entries, fetch: fetch}, nil
}

// Execute returns the payload for query and whether it came from the
// cache. Mutations always go to the endpoint, are never stored, and
// purge the cache since they may change any stored read.
func (c *Cache) Execute(ctx context.Context, endpoint, query string, limits models.LimitConfig) (json.RawMessage, bool, error) {
	if err := graphql.Check(query); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	if graphql.IsMutation(query) {
		data, err := c.load(ctx, endpoint, query, limits)
		if err != nil {
			return nil, false, err
		}
		c.entries.Purge()
		c.misses.Add(1)
		return data, false, nil
	}

	key := xxhash.Sum64String(graphql.Normalize(query))
	if data, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return data, true, nil
	}

	data, err := c.load(ctx, endpoint, query, limits)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, data)
	c.misses.Add(1)
	return data, false, nil
}

func (c *Cache) load(ctx context.Context, endpoint, query string, limits models.LimitConfig) (json.RawMessage, error) {
	resp, err := c.fetch.ExecuteAt(ctx, endpoint, query, limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if len(resp.Data) == 0 || !json.Valid(resp.Data) {
		return nil, fmt.Errorf("%w: endpoint returned no usable data", ErrInvalidQuery)
	}
	return resp.Data, nil
}

// Clear drops every cached payload. It is safe to call repeatedly.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries: int64(c.entries.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
