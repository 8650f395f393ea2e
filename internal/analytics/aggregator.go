package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

const (
	// latencyWindow bounds the latency reservoir: percentiles cover the most
	// recent samples instead of growing without limit.
	latencyWindow = 10000
	// maxTrackedQueries caps query-count cardinality. New distinct queries
	// beyond the cap are not tracked individually.
	maxTrackedQueries = 10000
)

// AggregatedStats is the rollup served at /api/v1/analytics and persisted by
// the snapshot store.
type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	IndexBuilds       int64        `json:"index_builds"`
	LastBuild         *BuildInfo   `json:"last_build,omitempty"`
}

// QueryCount pairs a query string with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// BuildInfo summarizes the most recent index build observed on the stream.
type BuildInfo struct {
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Postings    int       `json:"postings"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Aggregator folds the event stream into query statistics. It is safe for
// concurrent use by the consumer goroutine and HTTP handlers.
type Aggregator struct {
	totalSearches atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	zeroResults   atomic.Int64
	indexBuilds   atomic.Int64

	mu                sync.RWMutex
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	lastBuild         *BuildInfo
	startTime         time.Time

	topN   int
	logger *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		topN:              topN,
		logger:            logger.WithComponent("analytics-aggregator"),
	}
}

// eventEnvelope is the minimal shape needed to route a stream message.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// HandleEvent returns the Kafka message handler feeding the aggregator.
// Undecodable or unknown messages are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		envelope, err := kafka.DecodeJSON[eventEnvelope](value)
		if err != nil {
			agg.logger.Error("skipping undecodable analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventSearch, EventZeroResult:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("skipping malformed search event", "error", err)
				return nil
			}
			agg.recordSearch(event)
		case EventIndexComplete:
			event, err := kafka.DecodeJSON[IndexCompleteEvent](value)
			if err != nil {
				agg.logger.Error("skipping malformed index event", "error", err)
				return nil
			}
			agg.recordBuild(event)
		default:
			agg.logger.Warn("skipping analytics event of unknown type", "type", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Results == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % latencyWindow
	}

	if _, tracked := a.queryCounts[event.Query]; tracked || len(a.queryCounts) < maxTrackedQueries {
		a.queryCounts[event.Query]++
	}
	if event.Results == 0 {
		if _, tracked := a.zeroResultQueries[event.Query]; tracked || len(a.zeroResultQueries) < maxTrackedQueries {
			a.zeroResultQueries[event.Query]++
		}
	}
}

func (a *Aggregator) recordBuild(event IndexCompleteEvent) {
	a.indexBuilds.Add(1)

	a.mu.Lock()
	a.lastBuild = &BuildInfo{
		Documents:   event.Documents,
		Terms:       event.Terms,
		Postings:    event.Postings,
		ElapsedMs:   event.LatencyMs,
		CompletedAt: event.Timestamp,
	}
	a.mu.Unlock()

	a.logger.Info("index build observed",
		"documents", event.Documents,
		"terms", event.Terms,
		"postings", event.Postings,
	)
}

// Stats snapshots the current rollup.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		IndexBuilds:     a.indexBuilds.Load(),
	}

	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}

	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)

	if a.lastBuild != nil {
		build := *a.lastBuild
		stats.LastBuild = &build
	}

	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent entries, ties broken by query string so
// the order is stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
