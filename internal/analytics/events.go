// Package analytics records what the engine is asked and how it answers:
// events are aggregated in process for the stats endpoint and, when Kafka is
// configured, published in batches for offline analysis.
package analytics

import "time"

type EventType string

const (
	EventSearch    EventType = "search"
	EventDiversify EventType = "diversify"
	EventBatch     EventType = "batch_query"
)

type QueryEvent struct {
	Type      EventType `json:"type"`
	QueryID   string    `json:"query_id,omitempty"`
	Query     string    `json:"query"`
	Model     string    `json:"model"`
	Diversity string    `json:"diversity,omitempty"`
	Intents   int       `json:"intents,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Failed    bool      `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// key partitions events by query so that one query's history stays ordered.
func (e QueryEvent) key() string {
	if e.QueryID != "" {
		return e.QueryID
	}
	return e.Query
}
