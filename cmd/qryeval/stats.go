package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/kafka"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var (
		window    time.Duration
		fromStart bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate published query events from Kafka",
		Long: `Consume the query-events topic for the given window and print the
aggregated statistics (volume, latency percentiles, top and zero-result
queries) as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			aggregator := analytics.NewAggregator()
			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, fromStart, analytics.Consume(aggregator))

			ctx, cancel := context.WithTimeout(cmd.Context(), window)
			defer cancel()
			if _, err := consumer.Run(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(aggregator.Stats())
		},
	}

	cmd.Flags().DurationVar(&window, "window", 10*time.Second, "How long to consume before reporting")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Read from the oldest retained event when the group has no offsets")
	return cmd
}
