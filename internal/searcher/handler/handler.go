package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/diversify"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/middleware"
)

// maxBodyBytes caps diversify request bodies.
const maxBodyBytes = 1 << 20

type QueryExecutor interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	Diversify(ctx context.Context, query string, intents []string, engine *diversify.Engine) (*executor.SearchResult, error)
	Model() retrieval.Model
}

type Handler struct {
	executor     QueryExecutor
	cache        *cache.QueryCache
	collector    *analytics.Collector
	diversity    *diversify.Engine
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns the search handler. queryCache, collector and diversity may be
// nil; a nil diversity engine disables the diversify endpoint.
func New(exec QueryExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, diversity *diversify.Engine, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		collector:    collector,
		diversity:    diversity,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/diversify", h.Diversify)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := h.executor.Model()
	compute := func() (*executor.SearchResult, error) {
		return h.executor.Search(ctx, query, limit)
	}
	result, cacheHit, err := h.run(ctx, cache.Key{Model: model.String(), Query: query, Limit: limit}, compute)

	event := analytics.QueryEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Model:     model.Kind().String(),
		CacheHit:  cacheHit,
		RequestID: middleware.GetRequestID(ctx),
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		event.Failed = true
		h.track(event, start)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	event.TotalHits, event.Returned = result.TotalHits, len(result.Results)
	latency := h.track(event, start)

	log.Info("search completed",
		"query", query,
		"model", event.Model,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency,
	)
	h.setCacheHeader(w, cacheHit)
	h.writeJSON(w, http.StatusOK, result)
}

type DiversifyRequest struct {
	Query     string   `json:"query"`
	Intents   []string `json:"intents"`
	Limit     int      `json:"limit,omitempty"`
	Algorithm string   `json:"algorithm,omitempty"`
	Lambda    *float64 `json:"lambda,omitempty"`
}

// Diversify serves POST /api/v1/diversify. The configured algorithm and
// lambda may be overridden per request.
func (h *Handler) Diversify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.diversity == nil {
		h.writeError(w, http.StatusServiceUnavailable, "diversification is disabled")
		return
	}

	var req DiversifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "field 'query' is required")
		return
	}
	if len(req.Intents) == 0 {
		h.writeError(w, http.StatusBadRequest, "field 'intents' must not be empty")
		return
	}
	if req.Limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	engine, err := h.engineFor(req)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	alg := string(engine.Config().Algorithm)

	model := h.executor.Model()
	key := cache.Key{
		Model:     model.String(),
		Query:     req.Query,
		Limit:     req.Limit,
		Intents:   req.Intents,
		Diversity: fmt.Sprintf("%s/%g", alg, engine.Config().Lambda),
	}
	compute := func() (*executor.SearchResult, error) {
		result, err := h.executor.Diversify(ctx, req.Query, req.Intents, engine)
		if err != nil {
			return nil, err
		}
		if req.Limit > 0 && len(result.Results) > req.Limit {
			result.Results = result.Results[:req.Limit]
		}
		return result, nil
	}
	result, cacheHit, err := h.run(ctx, key, compute)

	event := analytics.QueryEvent{
		Type:      analytics.EventDiversify,
		Query:     req.Query,
		Model:     model.Kind().String(),
		Diversity: alg,
		Intents:   len(req.Intents),
		CacheHit:  cacheHit,
		RequestID: middleware.GetRequestID(ctx),
	}
	if err != nil {
		log.Error("diversification failed", "query", req.Query, "algorithm", alg, "error", err)
		event.Failed = true
		h.track(event, start)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	event.TotalHits, event.Returned = result.TotalHits, len(result.Results)
	latency := h.track(event, start)

	log.Info("diversification completed",
		"query", req.Query,
		"algorithm", alg,
		"intents", len(req.Intents),
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency,
	)
	h.setCacheHeader(w, cacheHit)
	h.writeJSON(w, http.StatusOK, result)
}

// setCacheHeader reports HIT or MISS when result caching is enabled.
func (h *Handler) setCacheHeader(w http.ResponseWriter, hit bool) {
	if h.cache == nil {
		return
	}
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

func (h *Handler) engineFor(req DiversifyRequest) (*diversify.Engine, error) {
	if req.Algorithm == "" && req.Lambda == nil {
		return h.diversity, nil
	}
	cfg := h.diversity.Config()
	if req.Algorithm != "" {
		cfg.Algorithm = diversify.Algorithm(req.Algorithm)
	}
	if req.Lambda != nil {
		cfg.Lambda = *req.Lambda
	}
	return diversify.New(cfg)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.Warn("cache entry count unavailable", "error", err)
	}
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"entries":  stats.Entries,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) run(ctx context.Context, key cache.Key, compute func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error) {
	if h.cache == nil {
		result, err := compute()
		return result, false, err
	}
	return h.cache.GetOrCompute(ctx, key, compute)
}

// track records event and returns the latency it was stamped with.
func (h *Handler) track(event analytics.QueryEvent, start time.Time) int64 {
	event.LatencyMs = time.Since(start).Milliseconds()
	if h.collector != nil {
		h.collector.Track(event)
	}
	return event.LatencyMs
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
