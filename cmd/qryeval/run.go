package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/trec"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/kafka"
)

type runOptions struct {
	queries        string
	output         string
	model          string
	corpus         string
	diversity      string
	intents        string
	initialRanking string
	length         int
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the query file and write trec_eval output",
		Long: `Evaluate every query of the query file ("qid:query" per line) and write
the rankings in trec_eval format, in query-file order.

Flags override the matching config settings. Setting --diversity enables
diversification; intents come from --intents ("qid.n:query" lines) and
precomputed rankings from --initial-ranking.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.apply(cmd, root.cfg)
			if err := root.cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cmd, root.cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.queries, "queries", "q", "", "Query file (search.queryFilePath)")
	f.StringVarP(&opts.output, "out", "o", "", "Output file, - for stdout (output.trecEvalOutputPath)")
	f.StringVarP(&opts.model, "model", "m", "", "Retrieval model: UnrankedBoolean, RankedBoolean, BM25, Indri")
	f.StringVar(&opts.corpus, "corpus", "", "JSON-lines corpus for the memory source (index.corpusPath)")
	f.StringVar(&opts.diversity, "diversity", "", "Diversify with xQuAD or PM2")
	f.StringVar(&opts.intents, "intents", "", "Intents file (diversity.intentsFile)")
	f.StringVar(&opts.initialRanking, "initial-ranking", "", "Initial ranking file (diversity.initialRankingFile)")
	f.IntVarP(&opts.length, "length", "n", 0, "Results written per query (output.trecEvalOutputLength)")
	return cmd
}

func (o runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("queries") {
		cfg.Search.QueryFilePath = o.queries
	}
	if flags.Changed("out") {
		cfg.Output.TrecEvalOutputPath = o.output
	}
	if flags.Changed("model") {
		cfg.Retrieval.Model = o.model
	}
	if flags.Changed("corpus") {
		cfg.Index.CorpusPath = o.corpus
	}
	if flags.Changed("diversity") {
		cfg.Diversity.Enabled = true
		cfg.Diversity.Algorithm = o.diversity
	}
	if flags.Changed("intents") {
		cfg.Diversity.IntentsFile = o.intents
	}
	if flags.Changed("initial-ranking") {
		cfg.Diversity.InitialRankingFile = o.initialRanking
	}
	if flags.Changed("length") {
		cfg.Output.TrecEvalOutputLength = o.length
	}
}

func runBatch(cmd *cobra.Command, cfg *config.Config) (err error) {
	ctx := cmd.Context()
	log := slog.Default().With("component", "qryeval")

	if cfg.Search.QueryFilePath == "" {
		return apperrors.Configuration("no query file: set search.queryFilePath or --queries")
	}
	queries, err := trec.ReadQueryFile(cfg.Search.QueryFilePath)
	if err != nil {
		return err
	}

	engine, err := bootstrap.Open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	opts, err := engine.BatchOptions(cfg)
	if err != nil {
		return err
	}

	collector, closeCollector := newBatchCollector(cfg)
	if collector != nil {
		collector.Start(ctx)
	}
	defer closeCollector()
	opts.Observe = func(r executor.BatchRecord) {
		log.Debug("query done", "query_id", r.QueryID, "results", r.Results, "took", r.Took)
		if collector != nil {
			collector.Track(analytics.QueryEvent{
				Type:      analytics.EventBatch,
				QueryID:   r.QueryID,
				Query:     r.Query,
				Model:     engine.Model.Kind().String(),
				Diversity: diversityName(engine),
				TotalHits: r.Results,
				Returned:  returned(r.Results, cfg.Output.TrecEvalOutputLength),
				Failed:    r.Err != nil,
				LatencyMs: r.Took.Milliseconds(),
			})
		}
	}

	out, closeOut, err := openOutput(cmd, cfg.Output.TrecEvalOutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()

	start := time.Now()
	w := trec.NewWriter(out, cfg.Output.RunID, cfg.Output.TrecEvalOutputLength)
	if err := engine.Executor.RunBatch(ctx, queries, w, opts); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing rankings: %w", err)
	}

	log.Info("batch complete",
		"engine", engine.Describe(),
		"queries", len(queries),
		"output", outputName(cfg.Output.TrecEvalOutputPath),
		"took", time.Since(start),
	)
	return nil
}

// newBatchCollector publishes batch query events when Kafka is enabled. The
// returned func flushes the collector and closes the producer.
func newBatchCollector(cfg *config.Config) (*analytics.Collector, func()) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	collector := analytics.NewCollector(producer, nil, analytics.CollectorConfig{})
	return collector, func() {
		collector.Close()
		if err := producer.Close(); err != nil {
			slog.Warn("closing kafka producer", "error", err)
		}
	}
}

func diversityName(e *bootstrap.Engine) string {
	if e.Diversity == nil {
		return ""
	}
	return string(e.Diversity.Config().Algorithm)
}

// returned is the number of results written for a query; a length of
// zero writes them all.
func returned(results, length int) int {
	if length <= 0 {
		return results
	}
	return min(results, length)
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

func outputName(path string) string {
	if path == "" || path == "-" {
		return "stdout"
	}
	return path
}
