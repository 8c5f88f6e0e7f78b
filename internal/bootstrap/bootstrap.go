// Package bootstrap turns a loaded configuration into a ready query engine:
// the posting source, the retrieval model, the executor and, when enabled,
// the diversification engine. Both binaries start through it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/pgsource"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/diversify"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/trec"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/tracing"
)

type Engine struct {
	Source    index.Source
	Model     retrieval.Model
	Executor  *executor.Executor
	Diversity *diversify.Engine
	// Postgres is set when the source is the postgres one.
	Postgres *postgres.Client
}

// Open builds an Engine from cfg. m may be nil.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	log := slog.Default().With("component", "bootstrap")

	model, err := Model(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	div, err := Diversity(cfg.Diversity)
	if err != nil {
		return nil, err
	}

	e := &Engine{Model: model, Diversity: div}
	switch strings.ToLower(cfg.Index.Source) {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		src, err := pgsource.New(db, cfg.Index.CacheSize, m)
		if err != nil {
			db.Close()
			return nil, err
		}
		e.Source, e.Postgres = src, db
		log.Info("postgres posting source ready",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Database,
			"cache_size", cfg.Index.CacheSize,
		)
	default:
		idx, err := index.LoadCorpusFile(cfg.Index.CorpusPath)
		if err != nil {
			return nil, err
		}
		n, _ := idx.NumDocs()
		if m != nil {
			m.IndexedDocuments.Set(float64(n))
		}
		e.Source = idx
		log.Info("in-memory posting source ready", "corpus", cfg.Index.CorpusPath, "documents", n)
	}

	e.Executor = executor.New(e.Source, model, cfg.Search,
		executor.WithMetrics(m),
		executor.WithTracer(tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)),
	)
	log.Info("query engine ready",
		"model", model.String(),
		"diversity", div != nil,
		"max_concurrent_queries", cfg.Search.MaxConcurrentQueries,
	)
	return e, nil
}

func (e *Engine) Close() error {
	if e.Postgres != nil {
		return e.Postgres.Close()
	}
	return nil
}

// Model converts the retrieval section of the configuration.
func Model(cfg config.RetrievalConfig) (retrieval.Model, error) {
	return retrieval.FromConfig(retrieval.Config{
		Name:  cfg.Model,
		BM25:  retrieval.BM25Params{K1: cfg.BM25.K1, B: cfg.BM25.B, K3: cfg.BM25.K3},
		Indri: retrieval.IndriParams{Mu: cfg.Indri.Mu, Lambda: cfg.Indri.Lambda},
	})
}

// Diversity converts the diversity section. It returns nil when
// diversification is disabled.
func Diversity(cfg config.DiversityConfig) (*diversify.Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return diversify.New(diversify.Config{
		Algorithm:              diversify.Algorithm(cfg.Algorithm),
		MaxInputRankingsLength: cfg.MaxInputRankingsLength,
		MaxResultRankingLength: cfg.MaxResultRankingLength,
		Lambda:                 cfg.Lambda,
	})
}

// BatchOptions prepares a batch run: output length from cfg.Output and, when
// diversification is enabled, the intents and initial ranking files.
func (e *Engine) BatchOptions(cfg *config.Config) (executor.BatchOptions, error) {
	opts := executor.BatchOptions{OutputLength: cfg.Output.TrecEvalOutputLength}
	if e.Diversity == nil {
		return opts, nil
	}
	opts.Diversity = e.Diversity

	if path := cfg.Diversity.InitialRankingFile; path != "" {
		rankings, err := trec.ReadRankingsFile(path)
		if err != nil {
			return opts, err
		}
		opts.InitialRankings = rankings
	}
	if path := cfg.Diversity.IntentsFile; path != "" {
		intents, err := trec.ReadIntentsFile(path)
		if err != nil {
			return opts, err
		}
		opts.Intents = intents
	}
	if opts.InitialRankings == nil && opts.Intents == nil {
		return opts, apperrors.Configuration("diversity is enabled but neither intentsFile nor initialRankingFile is set")
	}
	return opts, nil
}

// Describe summarises the engine for start-up banners.
func (e *Engine) Describe() string {
	desc := e.Model.String()
	if e.Diversity != nil {
		c := e.Diversity.Config()
		desc += fmt.Sprintf(" + %s(lambda=%g)", c.Algorithm, c.Lambda)
	}
	return desc
}
