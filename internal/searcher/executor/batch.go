package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/diversify"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/trec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/logger"
)

// BatchOptions configures RunBatch. With a nil Diversity engine queries are
// only evaluated. Otherwise every query is diversified, using the rankings
// in InitialRankings when the query has an entry there and evaluating the
// query and its Intents when it does not.
type BatchOptions struct {
	OutputLength    int
	Diversity       *diversify.Engine
	Intents         map[string][]trec.Query
	InitialRankings map[string]*trec.QueryRankings
	// Observe, when set, is called once per query in query-file order.
	Observe func(BatchRecord)
}

type BatchRecord struct {
	QueryID string
	Query   string
	Results int
	Took    time.Duration
	// Err is set when the query was rejected and written as an empty
	// ranking.
	Err error
}

// RunBatch evaluates queries concurrently and writes their results to w in
// query-file order. A query the model cannot evaluate, because it is
// malformed or uses an unsupported operator, is logged and written as an
// empty ranking; any other error aborts the batch.
func (e *Executor) RunBatch(ctx context.Context, queries []trec.Query, w *trec.Writer, opts BatchOptions) error {
	out := make([]*ranker.ResultList, len(queries))
	took := make([]time.Duration, len(queries))
	failed := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrentQueries > 0 {
		g.SetLimit(e.cfg.MaxConcurrentQueries)
	}
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			qctx := logger.WithQueryID(gctx, q.ID)
			results, err := e.runOne(qctx, q, opts)
			switch {
			case rejected(err):
				logger.FromContext(qctx).Warn("query skipped", "query", q.Text, "error", err)
				results, failed[i] = ranker.NewResultList(), err
			case err != nil:
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			out[i], took[i] = results, time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	skipped := 0
	for i, q := range queries {
		if err := w.WriteResults(q.ID, out[i]); err != nil {
			return fmt.Errorf("writing results for %s: %w", q.ID, err)
		}
		if failed[i] != nil {
			skipped++
		}
		if opts.Observe != nil {
			opts.Observe(BatchRecord{QueryID: q.ID, Query: q.Text, Results: out[i].Len(), Took: took[i], Err: failed[i]})
		}
	}
	e.logger.Info("batch complete", "queries", len(queries), "skipped", skipped, "model", e.model.String())
	return w.Flush()
}

// rejected reports errors that concern a single query rather than the run.
func rejected(err error) bool {
	return errors.Is(err, apperrors.ErrUnsupportedCombination) || errors.Is(err, apperrors.ErrMalformedInput)
}

func (e *Executor) runOne(ctx context.Context, q trec.Query, opts BatchOptions) (*ranker.ResultList, error) {
	if opts.Diversity == nil {
		results, err := e.Evaluate(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		results.Truncate(opts.OutputLength)
		return results, e.FillExternalIDs(results)
	}

	if rankings, ok := opts.InitialRankings[q.ID]; ok {
		set, err := e.rankingSet(ctx, rankings)
		if err != nil {
			return nil, err
		}
		return e.DiversifyRankings(ctx, set, opts.Diversity)
	}

	intents := opts.Intents[q.ID]
	if len(intents) == 0 {
		return nil, apperrors.Configuration("no intents for query %s", q.ID)
	}
	texts := make([]string, len(intents))
	for i, in := range intents {
		texts[i] = in.Text
	}
	results, _, _, err := e.diversify(ctx, q.Text, texts, opts.Diversity)
	return results, err
}

// rankingSet converts file rankings to internal ids. Documents the source
// does not know are skipped.
func (e *Executor) rankingSet(ctx context.Context, q *trec.QueryRankings) (diversify.RankingSet, error) {
	log := logger.FromContext(ctx)
	convert := func(entries []trec.Entry) (*diversify.Ranking, error) {
		r := diversify.NewRanking()
		for _, entry := range entries {
			doc, err := e.src.InternalID(entry.ExternalID)
			if errors.Is(err, apperrors.ErrDocumentNotFound) {
				log.Warn("ranked document not in index", "doc_id", entry.ExternalID)
				continue
			}
			if err != nil {
				return nil, err
			}
			r.Set(doc, entry.Score)
		}
		return r, nil
	}

	base, err := convert(q.Base)
	if err != nil {
		return diversify.RankingSet{}, err
	}
	set := diversify.RankingSet{Base: base}
	for _, in := range q.Intents {
		r, err := convert(in.Entries)
		if err != nil {
			return diversify.RankingSet{}, err
		}
		set.Intents = append(set.Intents, r)
	}
	return set, nil
}
