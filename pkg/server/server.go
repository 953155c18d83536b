package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	cachepkg "github.com/pario-ai/quelldemo/pkg/cache/sqlite"
	"github.com/pario-ai/quelldemo/pkg/config"
	"github.com/pario-ai/quelldemo/pkg/graphql"
	"github.com/pario-ai/quelldemo/pkg/models"
)

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Quell-Cache"

const maxBodyBytes = 1 << 20

// Server serves the GraphQL and cache-control endpoints.
type Server struct {
	cfg      *config.Config
	cache    *cachepkg.Cache
	origin   *http.Client
	logger   *slog.Logger
	mux      *http.ServeMux
	limitMu  sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// New creates a Server. cache may be nil, in which case every query goes
// to the origin and is reported as a miss.
func New(cfg *config.Config, cache *cachepkg.Cache, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.Cache.LimiterMaxClients
	if size <= 0 {
		size = 1024
	}
	limiters, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("create limiter table: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		cache:    cache,
		origin:   &http.Client{Timeout: cfg.HTTPTimeout},
		logger:   logger,
		mux:      http.NewServeMux(),
		limiters: limiters,
	}
	s.mux.HandleFunc("/api/graphql", s.handleGraphQL)
	s.mux.HandleFunc("/api/clearCache", s.handleClearCache)
	s.mux.HandleFunc("/api/cacheStats", s.handleCacheStats)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
		r.Header.Set("X-Request-ID", reqID)
	}
	w.Header().Set("X-Request-ID", reqID)
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo backend listening", "addr", s.cfg.Listen, "origin", s.cfg.OriginURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	r.Body.Close()

	var req models.GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limits := s.effectiveLimits(req.CostOptions)
	log := s.logger.With("request_id", r.Header.Get("X-Request-ID"))

	// Rate limit
	if !s.allow(clientIP(r), limits.RequestRateLimit) {
		writeJSONError(w, http.StatusTooManyRequests, "request rate limit exceeded")
		return
	}

	// Depth and cost limits
	if err := graphql.Check(req.Query); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if d := graphql.Depth(req.Query); d > limits.MaxDepth {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("query depth %d exceeds max depth %d", d, limits.MaxDepth))
		return
	}
	if c := graphql.Cost(req.Query); c > limits.MaxCost {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("query cost %d exceeds max cost %d", c, limits.MaxCost))
		return
	}

	mutation := graphql.IsMutation(req.Query)
	hash := graphql.Hash(req.Query)

	// Cache check
	if s.cache != nil && !mutation {
		if cached, ok := s.cache.Get(r.Context(), hash); ok {
			log.Debug("cache hit", "hash", hash[:12])
			writeQueryResponse(w, cached, true)
			return
		}
	}

	data, status, err := s.forward(r.Context(), req.Query)
	if err != nil {
		log.Warn("origin request failed", "err", err)
		writeJSONError(w, status, err.Error())
		return
	}

	if s.cache != nil {
		if mutation {
			if err := s.cache.Clear(r.Context(), false); err != nil {
				log.Warn("cache clear after mutation failed", "err", err)
			}
		} else if err := s.cache.Put(r.Context(), hash, graphql.Normalize(req.Query), data); err != nil {
			log.Warn("cache put failed", "err", err)
		}
	}
	log.Debug("cache miss", "hash", hash[:12], "mutation", mutation)
	writeQueryResponse(w, data, false)
}

// forward sends query to the origin and returns its data. The returned
// status is the one to answer the client with on error.
func (s *Server) forward(ctx context.Context, query string) (json.RawMessage, int, error) {
	body, err := json.Marshal(models.OriginRequest{Query: query})
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("encode origin request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OriginURL, bytes.NewReader(body))
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("create origin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.origin.Do(req)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("origin unavailable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("read origin response: %w", err)
	}

	var out models.OriginResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("origin returned %d with unparsable body", resp.StatusCode)
	}
	if len(out.Errors) > 0 {
		return nil, http.StatusBadRequest, errors.New(out.Errors[0].Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, http.StatusBadGateway, fmt.Errorf("origin returned %d", resp.StatusCode)
	}
	if len(out.Data) == 0 {
		return nil, http.StatusBadGateway, errors.New("origin returned no data")
	}
	return out.Data, http.StatusOK, nil
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cache != nil {
		if err := s.cache.Clear(r.Context(), false); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "cache clear failed")
			return
		}
	}
	s.logger.Info("server cache cleared", "request_id", r.Header.Get("X-Request-ID"))
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var stats models.CacheStats
	if s.cache != nil {
		var err error
		stats, err = s.cache.Stats(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "cache stats failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// effectiveLimits fills non-positive cost options from the configured defaults.
func (s *Server) effectiveLimits(l models.LimitConfig) models.LimitConfig {
	if l.MaxDepth <= 0 {
		l.MaxDepth = s.cfg.Limits.MaxDepth
	}
	if l.MaxCost <= 0 {
		l.MaxCost = s.cfg.Limits.MaxCost
	}
	if l.RequestRateLimit <= 0 {
		l.RequestRateLimit = s.cfg.Limits.RequestRateLimit
	}
	return l
}

// allow applies a per-client token bucket of perSecond requests per
// second with an equal burst. The bucket follows limit changes.
func (s *Server) allow(client string, perSecond int) bool {
	s.limitMu.Lock()
	lim, ok := s.limiters.Get(client)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		s.limiters.Add(client, lim)
	} else if lim.Burst() != perSecond {
		lim.SetLimit(rate.Limit(perSecond))
		lim.SetBurst(perSecond)
	}
	s.limitMu.Unlock()
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeQueryResponse(w http.ResponseWriter, data json.RawMessage, cached bool) {
	if cached {
		w.Header().Set(CacheHeader, "hit")
	} else {
		w.Header().Set(CacheHeader, "miss")
	}
	writeJSON(w, http.StatusOK, models.GraphQLResponse{
		QueryResponse: &models.QueryResponse{Data: data, Cached: cached},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, models.ErrorResponse{Error: models.ErrorDetail{
		Message: message,
		Type:    "quell_error",
		Code:    code,
	}})
}
