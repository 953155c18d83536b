package demo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/quelldemo/pkg/config"
	"github.com/pario-ai/quelldemo/pkg/graphql"
	"github.com/pario-ai/quelldemo/pkg/models"
)

// fakeBackend mimics the demo backend: it remembers which queries it has
// answered and reports later answers as cached.
type fakeBackend struct {
	mu          sync.Mutex
	seen        map[string]bool
	executes    atomic.Int32
	clears      atomic.Int32
	clearGate   chan struct{} // when non-nil, clear requests wait on it
	clearStart  chan struct{}
	executeGate chan struct{} // when non-nil, execute requests wait on it
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{seen: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/graphql", b.handleGraphQL)
	mux.HandleFunc("/api/clearCache", b.handleClear)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	b.executes.Add(1)
	if b.executeGate != nil {
		<-b.executeGate
	}
	var req models.GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || graphql.Check(req.Query) != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Syntax Error","type":"quell_error","code":400}}`))
		return
	}
	key := graphql.Hash(req.Query)
	b.mu.Lock()
	cached := b.seen[key]
	b.seen[key] = true
	b.mu.Unlock()

	json.NewEncoder(w).Encode(models.GraphQLResponse{QueryResponse: &models.QueryResponse{
		Data:   json.RawMessage(`{"city":{"name":"Oslo"}}`),
		Cached: cached,
	}})
}

func (b *fakeBackend) handleClear(w http.ResponseWriter, r *http.Request) {
	if b.clearStart != nil {
		close(b.clearStart)
	}
	if b.clearGate != nil {
		<-b.clearGate
	}
	b.mu.Lock()
	b.seen = make(map[string]bool)
	b.mu.Unlock()
	b.clears.Add(1)
}

func newController(t *testing.T, srv *httptest.Server, mode string) *Controller {
	t.Helper()
	cfg := config.Default()
	cfg.GraphQLEndpoint = srv.URL + "/api/graphql"
	cfg.ClearCacheEndpoint = srv.URL + "/api/clearCache"
	cfg.HTTPTimeout = 5 * time.Second
	cfg.Mode = mode
	c, err := Build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

var cityQuery = models.QueryRecord{Text: "{ city { name } }", TypeLabel: "city"}

func TestClientModeMissThenHit(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newController(t, srv, "client")
	ctx := context.Background()

	out, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.False(t, out.Result.WasHit)

	snap := c.Snapshot()
	assert.Len(t, snap.ResponseTimesMs, 1)
	assert.Equal(t, []string{"city"}, snap.QueryTypeLabels)
	assert.Equal(t, 1, snap.CacheMissCount)
	assert.Zero(t, snap.CacheHitCount)

	out, err = c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.True(t, out.Result.WasHit)

	snap = c.Snapshot()
	assert.Equal(t, 1, snap.CacheHitCount)
	assert.Equal(t, 1, snap.CacheMissCount)
	assert.Len(t, snap.ResponseTimesMs, 2)
}

func TestServerModeHitRendersData(t *testing.T) {
	b, srv := newFakeBackend(t)
	c := newController(t, srv, "server")
	ctx := context.Background()

	_, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	out, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)

	assert.True(t, out.Result.WasHit)
	assert.JSONEq(t, `{"city":{"name":"Oslo"}}`, string(out.Result.Data))
	assert.Equal(t, int32(2), b.executes.Load(), "server mode does not use the local cache")

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.CacheHitCount)
	assert.Equal(t, 1, snap.CacheMissCount)
}

func TestMalformedQueryRecordsError(t *testing.T) {
	for _, mode := range []string{"client", "server"} {
		t.Run(mode, func(t *testing.T) {
			_, srv := newFakeBackend(t)
			c := newController(t, srv, mode)
			ctx := context.Background()

			_, err := c.Submit(ctx, cityQuery)
			require.NoError(t, err)

			_, err = c.Submit(ctx, models.QueryRecord{Text: "{ city { name }", TypeLabel: "broken"})
			require.Error(t, err)

			snap := c.Snapshot()
			assert.Len(t, snap.ErrorLog, 1)
			assert.Len(t, snap.ResponseTimesMs, 1, "failed submission must not append")
			assert.Len(t, snap.QueryTypeLabels, 1)
			assert.Equal(t, 1, snap.Total())
		})
	}
}

func TestClientModeMalformedIsInvalidQuery(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newController(t, srv, "client")

	_, err := c.Submit(context.Background(), models.QueryRecord{Text: "{ city { name }"})
	require.Error(t, err)
	assert.Equal(t, []string{"Invalid query"}, c.Snapshot().ErrorLog)
}

func TestClearActive(t *testing.T) {
	b, srv := newFakeBackend(t)
	ctx := context.Background()

	client := newController(t, srv, "client")
	_, err := client.Submit(ctx, cityQuery)
	require.NoError(t, err)
	require.NoError(t, client.ClearActive(ctx))
	assert.Zero(t, b.clears.Load(), "client mode must not call the remote clear endpoint")

	out, err := client.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.False(t, out.Result.WasHit, "local cache was cleared")

	server := newController(t, srv, "server")
	require.NoError(t, server.ClearActive(ctx))
	assert.Equal(t, int32(1), b.clears.Load())
}

func TestToggleClearsBothCaches(t *testing.T) {
	b, srv := newFakeBackend(t)
	c := newController(t, srv, "client")
	ctx := context.Background()

	_, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)

	mode, err := c.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeServer, mode)
	assert.Equal(t, int32(1), b.clears.Load())

	// The backend saw the query during the client-mode miss, but its cache
	// was cleared on toggle.
	out, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.False(t, out.Result.WasHit)

	require.NoError(t, c.SetMode(ctx, models.ModeClient))
	assert.Equal(t, int32(2), b.clears.Load())

	out, err = c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.False(t, out.Result.WasHit, "local cache was cleared on toggle")

	// Setting the current mode is not a transition.
	require.NoError(t, c.SetMode(ctx, models.ModeClient))
	assert.Equal(t, int32(2), b.clears.Load())
}

func TestConcurrentTogglesEachTransition(t *testing.T) {
	b, srv := newFakeBackend(t)
	c := newController(t, srv, "client")
	ctx := context.Background()

	var wg sync.WaitGroup
	modes := make(chan models.Mode, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mode, err := c.Toggle(ctx)
			assert.NoError(t, err)
			modes <- mode
		}()
	}
	wg.Wait()
	close(modes)

	var got []models.Mode
	for m := range modes {
		got = append(got, m)
	}
	assert.ElementsMatch(t, []models.Mode{models.ModeServer, models.ModeClient}, got)
	assert.Equal(t, models.ModeClient, c.Mode())
	assert.Equal(t, int32(2), b.clears.Load())
}

func TestSubmitWaitsForToggleClear(t *testing.T) {
	b, srv := newFakeBackend(t)
	b.clearGate = make(chan struct{})
	b.clearStart = make(chan struct{})
	c := newController(t, srv, "client")
	ctx := context.Background()

	toggled := make(chan error, 1)
	go func() {
		_, err := c.Toggle(ctx)
		toggled <- err
	}()
	<-b.clearStart

	submitted := make(chan *models.Outcome, 1)
	go func() {
		out, err := c.Submit(ctx, cityQuery)
		assert.NoError(t, err)
		submitted <- out
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, b.executes.Load(), "submission dispatched before caches were cleared")

	close(b.clearGate)
	require.NoError(t, <-toggled)
	out := <-submitted
	assert.Equal(t, models.ModeServer, out.Mode)
	assert.Equal(t, int32(1), b.executes.Load())
}

func TestInFlightSubmissionSurvivesToggle(t *testing.T) {
	b, srv := newFakeBackend(t)
	b.executeGate = make(chan struct{})
	c := newController(t, srv, "client")
	ctx := context.Background()

	submitted := make(chan *models.Outcome, 1)
	go func() {
		out, err := c.Submit(ctx, cityQuery)
		assert.NoError(t, err)
		submitted <- out
	}()
	require.Eventually(t, func() bool { return b.executes.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := c.Toggle(ctx)
	require.NoError(t, err)
	close(b.executeGate)

	out := <-submitted
	assert.Equal(t, models.ModeClient, out.Mode, "result keeps the mode it was dispatched with")
	assert.Equal(t, 1, c.Snapshot().Total())
}

func TestResetAll(t *testing.T) {
	b, srv := newFakeBackend(t)
	c := newController(t, srv, "server")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Submit(ctx, cityQuery)
		require.NoError(t, err)
	}
	_, _ = c.Submit(ctx, models.QueryRecord{Text: "{"})

	require.NoError(t, c.ResetAll(ctx))

	snap := c.Snapshot()
	assert.Empty(t, snap.ResponseTimesMs)
	assert.Empty(t, snap.QueryTypeLabels)
	assert.Zero(t, snap.CacheHitCount)
	assert.Zero(t, snap.CacheMissCount)
	assert.Len(t, snap.ErrorLog, 1, "reset keeps the error log")
	assert.Equal(t, int32(1), b.clears.Load())

	// Reset wins going forward: the next submission starts a fresh series.
	_, err := c.Submit(ctx, cityQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Snapshot().CacheMissCount)
}

func TestSetLimits(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newController(t, srv, "client")

	assert.Equal(t, models.DefaultLimits(), c.Limits())
	require.NoError(t, c.SetLimits(models.LimitConfig{MaxDepth: 3, MaxCost: 9, RequestRateLimit: 1}))
	assert.Equal(t, 3, c.Limits().MaxDepth)

	err := c.SetLimits(models.LimitConfig{MaxDepth: 0, MaxCost: 9, RequestRateLimit: 1})
	require.ErrorIs(t, err, models.ErrInvalidLimits)
	assert.Equal(t, 3, c.Limits().MaxDepth, "invalid limits are not applied")
}

func TestSamples(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newController(t, srv, "client")
	ctx := context.Background()

	assert.Equal(t, DefaultSampleLabel, c.Selected())
	assert.Equal(t, []string{"2depth", "3depth", "costly", "nested", "fragment", "mutation", "countryMut", "delete"}, c.Samples().Labels())

	out, err := c.SubmitSample(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2depth", out.TypeLabel)

	require.NoError(t, c.Select("nested"))
	out, err = c.SubmitSample(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "nested", out.TypeLabel)

	assert.Error(t, c.Select("nope"))
	_, err = c.SubmitSample(ctx, "nope")
	assert.Error(t, err)
}

func TestSampleOverrides(t *testing.T) {
	s := NewSamples(
		models.QueryRecord{TypeLabel: "2depth", Text: "{ a }"},
		models.QueryRecord{TypeLabel: "extra", Text: "{ b }"},
	)
	q, err := s.Get("2depth")
	require.NoError(t, err)
	assert.Equal(t, "{ a }", q.Text)
	labels := s.Labels()
	assert.Equal(t, "2depth", labels[0])
	assert.Equal(t, "extra", labels[len(labels)-1])

	for _, label := range s.Labels() {
		q, err := s.Get(label)
		require.NoError(t, err)
		assert.NoError(t, graphql.Check(q.Text), "sample %s", label)
	}
}
