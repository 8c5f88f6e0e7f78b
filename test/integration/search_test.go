// Package integration exercises the search service through its real HTTP
// wiring: bootstrap, handlers, analytics and the middleware chain, over the
// sample corpus in testdata/. External dependencies (Kafka, PostgreSQL,
// Redis) are left out.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/middleware"
)

const corpusPath = "../../testdata/corpus.jsonl"

type service struct {
	srv        *httptest.Server
	aggregator *analytics.Aggregator
}

func newService(t *testing.T, model string, limiter *middleware.Limiter) *service {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Index.CorpusPath = corpusPath
	cfg.Retrieval.Model = model
	cfg.Diversity.Enabled = true
	cfg.Diversity.MaxResultRankingLength = 5
	require.NoError(t, cfg.Validate())

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	engine, err := bootstrap.Open(context.Background(), cfg, m)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(nil, aggregator, analytics.CollectorConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	collector.Start(ctx)
	t.Cleanup(func() {
		cancel()
		collector.Close()
	})

	checker := health.NewChecker()
	checker.Register("posting_source", func(ctx context.Context) health.ComponentHealth {
		if _, err := engine.Source.NumDocs(); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(engine.Executor, nil, collector, engine.Diversity, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	chain := router.New(router.Config{
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"http://localhost:3000"},
		Limiter:        limiter,
	}, h, aggregator, checker, m)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return &service{srv: srv, aggregator: aggregator}
}

func (s *service) search(t *testing.T, query string, limit int) *executor.SearchResult {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", s.srv.URL, url.QueryEscape(query), limit))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return &res
}

func docIDs(res *executor.SearchResult) []string {
	ids := make([]string, len(res.Results))
	for i, r := range res.Results {
		ids[i] = r.ExternalID
	}
	return ids
}

func TestSearch_NearMatchesAdjacentTermsOnly(t *testing.T) {
	s := newService(t, "RankedBoolean", nil)

	res := s.search(t, "#near/1(black box)", 10)
	assert.ElementsMatch(t, []string{"clueweb-0002", "clueweb-0005", "clueweb-0008"}, docIDs(res))
	assert.Equal(t, 3, res.TotalHits)
}

func TestSearch_UnrankedBooleanScoresOne(t *testing.T) {
	s := newService(t, "UnrankedBoolean", nil)

	res := s.search(t, "kenya", 10)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestSearch_BM25RanksAndLimits(t *testing.T) {
	s := newService(t, "BM25", nil)

	res := s.search(t, "black box", 2)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, 5, res.TotalHits)
	assert.GreaterOrEqual(t, res.Results[0].Score, res.Results[1].Score)
}

func TestDiversify_CoversIntents(t *testing.T) {
	s := newService(t, "Indri", nil)

	body, err := json.Marshal(handler.DiversifyRequest{
		Query:     "black box",
		Intents:   []string{"flight recorder crash", "black box testing software", "black box theatre"},
		Limit:     3,
		Algorithm: "xquad",
	})
	require.NoError(t, err)
	resp, err := http.Post(s.srv.URL+"/api/v1/diversify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.ElementsMatch(t, []string{"clueweb-0002", "clueweb-0005", "clueweb-0008"}, docIDs(&res))
	assert.NotEmpty(t, res.Diversity)
}

func TestAnalytics_ReflectsTraffic(t *testing.T) {
	s := newService(t, "Indri", nil)
	s.search(t, "obama family tree", 5)
	s.search(t, "obama family tree", 5)
	s.search(t, "nonexistentterm", 5)

	resp, err := http.Get(s.srv.URL + "/api/v1/analytics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats analytics.AggregatedStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(3), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, "obama family tree", stats.TopQueries[0].Query)
	assert.Equal(t, int64(2), stats.TopQueries[0].Count)
}

func TestHealth(t *testing.T) {
	s := newService(t, "BM25", nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(s.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	s := newService(t, "BM25", middleware.NewLimiter(2, time.Minute))

	get := func(client string) int {
		req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/search?q=kenya", nil)
		require.NoError(t, err)
		req.Header.Set(middleware.ClientIDHeader, client)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("batch-1"))
	assert.Equal(t, http.StatusOK, get("batch-1"))
	assert.Equal(t, http.StatusTooManyRequests, get("batch-1"))
	assert.Equal(t, http.StatusOK, get("batch-2"))
}

func TestCORS_Preflight(t *testing.T) {
	s := newService(t, "BM25", nil)

	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/api/v1/diversify", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
