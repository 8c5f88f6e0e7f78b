package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/pgsource"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var corpus string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a JSON-lines corpus into PostgreSQL",
		Long: `Tokenize a JSON-lines corpus ({"id": ..., "fields": {...}} per line) and
replace the postings stored in PostgreSQL with it. Afterwards the corpus can
be served with index.source: postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if corpus == "" {
				corpus = cfg.Index.CorpusPath
			}
			if corpus == "" {
				return apperrors.Configuration("no corpus: set index.corpusPath or --corpus")
			}

			start := time.Now()
			idx, err := index.LoadCorpusFile(corpus)
			if err != nil {
				return err
			}

			db, err := postgres.New(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := pgsource.Import(cmd.Context(), db, idx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents, %d inverted lists, %d postings in %s\n",
				stats.Documents, stats.Lists, stats.Postings, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "", "JSON-lines corpus (defaults to index.corpusPath)")
	return cmd
}
