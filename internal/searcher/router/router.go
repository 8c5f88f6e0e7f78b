// Package router wires the search service routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/middleware"
)

type Config struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	// Limiter enables per-client rate limiting when set.
	Limiter *middleware.Limiter
}

// New builds the search service HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search              → evaluate a query
//	POST   /api/v1/diversify           → evaluate and diversify with intents
//	GET    /api/v1/cache/stats         → result cache counters
//	POST   /api/v1/cache/invalidate    → drop cached results
//	GET    /api/v1/analytics           → aggregated query statistics
//	GET    /health/live                → liveness
//	GET    /health/ready               → readiness
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(cfg Config, h *handler.Handler, agg *analytics.Aggregator, checker *health.Checker, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.RequestTimeout)(chain)
	if cfg.Limiter != nil {
		chain = middleware.RateLimit(cfg.Limiter, m)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	if len(cfg.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins))(chain)
	}
	return middleware.RequestID(chain)
}
