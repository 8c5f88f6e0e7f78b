package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type searchOptions struct {
	limit     int
	model     string
	corpus    string
	format    string
	diversity string
	intents   []string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Evaluate one query and print its ranking",
		Long: `Evaluate one query and print the top results.

Examples:
  qryeval search "obama family tree"
  qryeval search "#wsum(0.7 apple.title 0.3 pie)" --model indri -n 5
  qryeval search "jaguar" --diversity xquad --intent "jaguar car" --intent "jaguar cat"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	f.StringVarP(&opts.model, "model", "m", "", "Retrieval model (overrides retrieval.model)")
	f.StringVar(&opts.corpus, "corpus", "", "JSON-lines corpus (overrides index.corpusPath)")
	f.StringVar(&opts.format, "format", "text", "Output format: text, json")
	f.StringVar(&opts.diversity, "diversity", "", "Diversify with xQuAD or PM2")
	f.StringArrayVar(&opts.intents, "intent", nil, "Intent query (repeatable, requires --diversity)")
	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	cfg := root.cfg
	if opts.model != "" {
		cfg.Retrieval.Model = opts.model
	}
	if opts.corpus != "" {
		cfg.Index.CorpusPath = opts.corpus
	}
	if opts.diversity != "" {
		cfg.Diversity.Enabled = true
		cfg.Diversity.Algorithm = opts.diversity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(opts.intents) > 0 && !cfg.Diversity.Enabled {
		return apperrors.Configuration("--intent requires --diversity")
	}

	engine, err := bootstrap.Open(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	var result *executor.SearchResult
	if len(opts.intents) > 0 {
		result, err = engine.Executor.Diversify(cmd.Context(), query, opts.intents, engine.Diversity)
		if err == nil && opts.limit > 0 && len(result.Results) > opts.limit {
			result.Results = result.Results[:opts.limit]
		}
	} else {
		result, err = engine.Executor.Search(cmd.Context(), query, opts.limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text":
		fmt.Fprintf(out, "%s  [%s]  %d matching documents\n\n", result.Parsed, result.Model, result.TotalHits)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tDOCUMENT\tSCORE")
		for i, d := range result.Results {
			fmt.Fprintf(tw, "%d\t%s\t%.6f\n", i+1, d.ExternalID, d.Score)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}
