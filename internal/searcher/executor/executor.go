// Package executor runs queries end to end: parse, evaluate against the
// posting source under the configured retrieval model, attach external ids,
// and optionally diversify across query intents.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/diversify"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/tracing"
)

type SearchResult struct {
	Query     string             `json:"query"`
	Parsed    string             `json:"parsed"`
	Model     string             `json:"model"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	Diversity string             `json:"diversity,omitempty"`
}

type Executor struct {
	src     index.Source
	model   retrieval.Model
	cfg     config.SearchConfig
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	logger  *slog.Logger
}

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithTracer(t *tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

func New(src index.Source, model retrieval.Model, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		src:    src,
		model:  model,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Model() retrieval.Model { return e.model }

// Evaluate parses query and scores every matching document. The result is
// sorted but not truncated and carries internal ids only. Each call builds
// its own operator tree, so concurrent calls share nothing but the source.
func (e *Executor) Evaluate(ctx context.Context, query string) (*ranker.ResultList, error) {
	results, _, err := e.evaluate(ctx, query)
	return results, err
}

func (e *Executor) evaluate(ctx context.Context, query string) (*ranker.ResultList, string, error) {
	start := time.Now()
	_, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()
	span.SetAttr("query", query)

	var (
		results *ranker.ResultList
		parsed  string
	)
	err := resilience.WithTimeout(ctx, e.cfg.QueryTimeout, "evaluate", func(context.Context) error {
		tree, err := parser.Parse(query, e.model)
		if err != nil {
			return err
		}
		r, err := tree.Evaluate(e.src, e.model)
		if err != nil {
			return err
		}
		results, parsed = r, tree.String()
		return nil
	})
	e.observe(start, results, err)
	if err != nil {
		return nil, "", fmt.Errorf("evaluating query %q: %w", query, err)
	}
	span.SetAttr("parsed", parsed)
	span.SetAttr("matches", results.Len())
	e.logger.Debug("query evaluated",
		"request_id", logger.RequestID(ctx),
		"query", query,
		"model", e.model.Kind().String(),
		"matches", results.Len(),
		"took", time.Since(start),
	)
	return results, parsed, nil
}

func (e *Executor) observe(start time.Time, results *ranker.ResultList, err error) {
	if e.metrics == nil {
		return
	}
	model := e.model.Kind().String()
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case results.Len() == 0:
		status = "empty"
	}
	e.metrics.QueriesTotal.WithLabelValues(model, status).Inc()
	e.metrics.QueryLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err == nil {
		e.metrics.QueryResultsCount.WithLabelValues(model).Observe(float64(results.Len()))
	}
}

// Search evaluates query and returns the top limit documents. limit <= 0
// selects the configured default; it is capped at the configured maximum.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	ctx, root := e.startTrace(ctx, "search")
	defer e.tracer.Finish(root)

	results, parsed, err := e.evaluate(ctx, query)
	if err != nil {
		return nil, err
	}
	total := results.Len()
	results.Truncate(e.clampLimit(limit))
	if err := e.FillExternalIDs(results); err != nil {
		return nil, err
	}
	root.SetAttr("results", results.Len())
	return e.newResult(query, parsed, total, results), nil
}

func (e *Executor) startTrace(ctx context.Context, name string) (context.Context, *tracing.Span) {
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx, root := tracing.StartSpan(ctx, name, traceID)
	root.SetAttr("model", e.model.String())
	return ctx, root
}

func (e *Executor) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	return limit
}

func (e *Executor) newResult(query, parsed string, total int, results *ranker.ResultList) *SearchResult {
	return &SearchResult{
		Query:     query,
		Parsed:    parsed,
		Model:     e.model.String(),
		TotalHits: total,
		Results:   results.Docs(),
	}
}

// FillExternalIDs resolves the external id of every entry.
func (e *Executor) FillExternalIDs(results *ranker.ResultList) error {
	for i := 0; i < results.Len(); i++ {
		ext, err := e.src.ExternalID(results.At(i).DocID)
		if err != nil {
			return fmt.Errorf("resolving external id of %d: %w", results.At(i).DocID, err)
		}
		results.SetExternalID(i, ext)
	}
	return nil
}

// Diversify evaluates query and every intent query, then reranks the base
// ranking with engine. Intent queries run concurrently, bounded by
// MaxConcurrentQueries. Each intent ranking keeps as many documents as the
// base ranking contributes, at most MaxInputRankingsLength.
func (e *Executor) Diversify(ctx context.Context, query string, intents []string, engine *diversify.Engine) (*SearchResult, error) {
	ctx, root := e.startTrace(ctx, "diversify")
	defer e.tracer.Finish(root)
	root.SetAttr("algorithm", string(engine.Config().Algorithm))
	root.SetAttr("intents", len(intents))

	results, parsed, total, err := e.diversify(ctx, query, intents, engine)
	if err != nil {
		return nil, err
	}
	out := e.newResult(query, parsed, total, results)
	out.Diversity = string(engine.Config().Algorithm)
	return out, nil
}

func (e *Executor) diversify(ctx context.Context, query string, intents []string, engine *diversify.Engine) (*ranker.ResultList, string, int, error) {
	if len(intents) == 0 {
		return nil, "", 0, apperrors.Configuration("query %q has no intents", query)
	}
	cfg := engine.Config()

	base, parsed, err := e.evaluate(ctx, query)
	if err != nil {
		return nil, "", 0, err
	}
	required := min(base.Len(), cfg.MaxInputRankingsLength)
	set := diversify.RankingSet{
		Base:    diversify.RankingFromResults(base, cfg.MaxInputRankingsLength),
		Intents: make([]*diversify.Ranking, len(intents)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrentQueries > 0 {
		g.SetLimit(e.cfg.MaxConcurrentQueries)
	}
	for i, intent := range intents {
		g.Go(func() error {
			results, err := e.Evaluate(gctx, intent)
			if err != nil {
				return fmt.Errorf("intent %d: %w", i+1, err)
			}
			set.Intents[i] = diversify.RankingFromResults(results, required)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", 0, err
	}

	results, err := e.rerank(ctx, engine, set)
	if err != nil {
		return nil, "", 0, err
	}
	e.logger.Info("query diversified",
		"request_id", logger.RequestID(ctx),
		"query", query,
		"algorithm", cfg.Algorithm,
		"intents", len(intents),
		"candidates", base.Len(),
		"selected", results.Len(),
	)
	return results, parsed, base.Len(), nil
}

// DiversifyRankings reranks precomputed rankings, such as those read from a
// diversity initial ranking file.
func (e *Executor) DiversifyRankings(ctx context.Context, set diversify.RankingSet, engine *diversify.Engine) (*ranker.ResultList, error) {
	ctx, root := e.startTrace(ctx, "diversify-rankings")
	defer e.tracer.Finish(root)
	return e.rerank(ctx, engine, set)
}

func (e *Executor) rerank(ctx context.Context, engine *diversify.Engine, set diversify.RankingSet) (*ranker.ResultList, error) {
	_, span := tracing.StartChildSpan(ctx, "rerank")
	defer span.End()

	alg := string(engine.Config().Algorithm)
	results, err := engine.Rerank(set)
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.DiversificationsTotal.WithLabelValues(alg, status).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("diversifying with %s: %w", alg, err)
	}
	if err := e.FillExternalIDs(results); err != nil {
		return nil, err
	}
	span.SetAttr("selected", results.Len())
	return results, nil
}
