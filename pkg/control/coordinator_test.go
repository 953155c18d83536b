package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/quelldemo/pkg/metrics"
	"github.com/pario-ai/quelldemo/pkg/models"
)

type countingLocal struct{ clears atomic.Int32 }

func (c *countingLocal) Clear() { c.clears.Add(1) }

type countingRemote struct {
	clears atomic.Int32
	err    error
}

func (c *countingRemote) ClearCache(context.Context) error {
	c.clears.Add(1)
	return c.err
}

func newCoordinator(store *metrics.Store) (*Coordinator, *countingLocal, *countingRemote) {
	local, remote := &countingLocal{}, &countingRemote{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(local, remote, store, logger), local, remote
}

func TestClearActiveServerMode(t *testing.T) {
	c, local, remote := newCoordinator(metrics.New())

	require.NoError(t, c.ClearActive(context.Background(), models.ModeServer))
	assert.Equal(t, int32(1), local.clears.Load())
	assert.Equal(t, int32(1), remote.clears.Load())
}

func TestClearActiveClientMode(t *testing.T) {
	c, local, remote := newCoordinator(metrics.New())

	require.NoError(t, c.ClearActive(context.Background(), models.ModeClient))
	assert.Equal(t, int32(1), local.clears.Load())
	assert.Zero(t, remote.clears.Load(), "remote must not be called in client mode")
}

func TestClearAll(t *testing.T) {
	c, local, remote := newCoordinator(metrics.New())

	require.NoError(t, c.ClearAll(context.Background()))
	assert.Equal(t, int32(1), local.clears.Load())
	assert.Equal(t, int32(1), remote.clears.Load())
}

func TestResetAll(t *testing.T) {
	for _, mode := range []models.Mode{models.ModeClient, models.ModeServer} {
		t.Run(mode.String(), func(t *testing.T) {
			store := metrics.New()
			store.RecordSuccess(10, "a", true)
			store.RecordSuccess(11, "b", false)
			store.RecordError("Invalid query")
			c, local, _ := newCoordinator(store)

			require.NoError(t, c.ResetAll(context.Background(), mode))

			snap := store.Snapshot()
			assert.Empty(t, snap.ResponseTimesMs)
			assert.Empty(t, snap.QueryTypeLabels)
			assert.Zero(t, snap.CacheHitCount)
			assert.Zero(t, snap.CacheMissCount)
			assert.Equal(t, []string{"Invalid query"}, snap.ErrorLog)
			assert.Equal(t, int32(1), local.clears.Load())
		})
	}
}

func TestResetAllRemoteFailureStillResets(t *testing.T) {
	store := metrics.New()
	store.RecordSuccess(10, "a", true)
	c, _, remote := newCoordinator(store)
	remote.err = errors.New("connection refused")

	err := c.ResetAll(context.Background(), models.ModeServer)
	require.ErrorIs(t, err, remote.err)
	assert.Zero(t, store.Snapshot().Total())
}

func TestClearActiveWithoutRemote(t *testing.T) {
	local := &countingLocal{}
	c := New(local, nil, metrics.New(), nil)

	require.NoError(t, c.ClearActive(context.Background(), models.ModeClient))
	assert.Error(t, c.ClearActive(context.Background(), models.ModeServer))
	assert.Equal(t, int32(2), local.clears.Load())
}
