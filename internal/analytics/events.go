// Package analytics carries engine activity over the event stream. On the
// publishing side the collector buffers search traffic and batch-publishes
// it; index builds emit a single completion event that also drives searchd
// snapshot reloads. On the consuming side the aggregator folds the stream
// into the rollup served by the analytics service.
package analytics

import "time"

type EventType string

const (
	EventSearch        EventType = "search"
	EventZeroResult    EventType = "zero_result"
	EventIndexComplete EventType = "index_complete"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Results   int       `json:"results"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexCompleteEvent announces a finished index build. searchd instances
// consume it to reload their snapshot.
type IndexCompleteEvent struct {
	Type      EventType `json:"type"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	Postings  int       `json:"postings"`
	LatencyMs int64     `json:"latency_ms"`
	IndexDir  string    `json:"index_dir"`
	Timestamp time.Time `json:"timestamp"`
}
