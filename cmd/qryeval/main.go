// Command qryeval evaluates structured queries against a corpus and writes
// trec_eval rankings, optionally diversified with xQuAD or PM2.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "qryeval",
		Short: "Structured query evaluation and result diversification",
		Long: `qryeval runs a query file through an operator-tree retrieval engine
(Unranked/Ranked Boolean, BM25 or Indri) and writes trec_eval output.

Examples:
  qryeval run --config configs/bm25.yaml
  qryeval run --model indri --diversity pm2 --intents intents.txt
  qryeval search "#near/1(black box)" --limit 5
  qryeval import --corpus corpus.jsonl
  qryeval stats --window 30s`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			// stdout may carry rankings, so logs go to stderr.
			logger.SetupWriter(os.Stderr, level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
