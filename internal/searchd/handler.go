package searchd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/search"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/textproc"
	apperrors "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/errors"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/middleware"
)

// SearchResponse is the envelope returned by the search endpoint.
type SearchResponse struct {
	Query    string          `json:"query"`
	Results  []search.Result `json:"results"`
	Count    int             `json:"count"`
	CacheHit bool            `json:"cache_hit"`
	TookMs   int64           `json:"took_ms"`
}

// Handler serves the search API. cache, collector, and m may all be nil; the
// handler degrades to uncached, unobserved serving.
type Handler struct {
	pipeline     *search.Pipeline
	cache        *QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func NewHandler(pipeline *search.Pipeline, cache *QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		pipeline:     pipeline,
		cache:        cache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&limit=N.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	terms := textproc.Normalize(query)
	if len(terms) == 0 {
		h.observeSearch("empty", "bypass", start, 0)
		h.writeJSON(w, http.StatusOK, SearchResponse{
			Query:   query,
			Results: []search.Result{},
			TookMs:  time.Since(start).Milliseconds(),
		})
		return
	}

	var results []search.Result
	cacheHit := false
	if h.cache != nil {
		results, cacheHit = h.cache.GetOrCompute(ctx, query, limit, func() []search.Result {
			return h.pipeline.Search(ctx, query, limit)
		})
	} else {
		results = h.pipeline.Search(ctx, query, limit)
	}

	latencyMs := time.Since(start).Milliseconds()
	outcome := "ok"
	if len(results) == 0 {
		outcome = "zero_results"
	}
	h.observeSearch(outcome, cacheStatus(h.cache, cacheHit), start, len(results))

	log.Info("search completed",
		"query", query,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	if h.collector != nil {
		eventType := analytics.EventSearch
		if len(results) == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Record(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     terms,
			Results:   len(results),
			CacheHit:  cacheHit,
			LatencyMs: latencyMs,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r),
		})
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:    query,
		Results:  results,
		Count:    len(results),
		CacheHit: cacheHit,
		TookMs:   latencyMs,
	})
}

// Stats handles GET /api/v1/stats. It always answers 200; an absent index is
// reported in the record's status field, not as an HTTP error.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.pipeline.Stats())
}

// Reload handles POST /api/v1/index/reload, re-reading the persisted records
// and swapping the serving snapshot.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if err := h.pipeline.Reload(); err != nil {
		if h.metrics != nil {
			h.metrics.IndexReloadsTotal.WithLabelValues("failure").Inc()
		}
		log.Error("index reload failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.IndexReloadsTotal.WithLabelValues("success").Inc()
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			log.Warn("cache invalidation after reload failed", "error", err)
		}
	}

	stats, _ := h.pipeline.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"documents": stats.DocumentCount,
		"terms":     stats.TermCount,
		"postings":  stats.PostingCount,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeSearch(outcome, cacheStatus string, start time.Time, resultCount int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(resultCount))
	switch cacheStatus {
	case "hit":
		h.metrics.CacheHitsTotal.Inc()
	case "miss":
		h.metrics.CacheMissesTotal.Inc()
	}
}

func cacheStatus(cache *QueryCache, hit bool) string {
	if cache == nil {
		return "bypass"
	}
	if hit {
		return "hit"
	}
	return "miss"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
