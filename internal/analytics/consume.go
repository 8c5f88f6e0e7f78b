package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/kafka"
)

// Consume returns a handler that feeds published query events back into
// aggregator, so that stats can be rebuilt from the topic.
func Consume(aggregator *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			return err
		}
		aggregator.Record(event)
		return nil
	}
}
