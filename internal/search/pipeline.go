// Package search implements the query pipeline: normalize the query with the
// index-time normalizer, score additively against the inverted index, rank
// deterministically, truncate, and merge document metadata into results.
//
// The pipeline serves from an immutable snapshot behind an atomic pointer.
// Rebuilds load a fresh snapshot and swap it in; in-flight queries finish on
// the snapshot they started with. Nothing on the query path takes a lock.
package search

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/textproc"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

// Stats statuses.
const (
	StatusReady   = "ready"
	StatusNoIndex = "no_index"
)

// StatsRecord describes the currently served snapshot. IndexSize is the
// total posting count; the average is postings per document, rounded to two
// decimals.
type StatsRecord struct {
	Status                  string  `json:"status"`
	TotalDocuments          int     `json:"total_documents"`
	TotalTerms              int     `json:"total_terms"`
	IndexSize               int     `json:"index_size"`
	AverageTermsPerDocument float64 `json:"average_terms_per_document"`
	IndexDirectory          string  `json:"index_directory,omitempty"`
}

// snapshot pairs an inverted index with the metadata table it was built
// alongside. Both are immutable once loaded.
type snapshot struct {
	index *index.Index
	meta  map[string]document.Metadata
}

// Pipeline answers queries against the current index snapshot.
type Pipeline struct {
	store  *index.Store
	logger *slog.Logger
	snap   atomic.Pointer[snapshot]
}

func NewPipeline(store *index.Store) *Pipeline {
	return &Pipeline{
		store:  store,
		logger: logger.WithComponent("search"),
	}
}

// Reload loads the index records from disk and atomically swaps them in as
// the served snapshot. On error the previous snapshot keeps serving.
func (p *Pipeline) Reload() error {
	ix, meta, err := p.store.Load()
	if err != nil {
		return err
	}
	p.snap.Store(&snapshot{index: ix, meta: meta})
	return nil
}

// Ready reports whether a snapshot is loaded.
func (p *Pipeline) Ready() bool {
	return p.snap.Load() != nil
}

// Snapshot returns the served index stats, for health checks and gauges.
func (p *Pipeline) Snapshot() (index.Stats, bool) {
	snap := p.snap.Load()
	if snap == nil {
		return index.Stats{}, false
	}
	return snap.index.Stats(), true
}

// Search runs the full query pipeline and never fails: any degenerate input
// or missing state yields an empty result list. The returned slice is always
// non-nil.
func (p *Pipeline) Search(ctx context.Context, query string, maxResults int) []Result {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "search")

	snap := p.snap.Load()
	if snap == nil {
		log.Warn("search with no index loaded", "query", query)
		return []Result{}
	}
	if maxResults <= 0 {
		return []Result{}
	}

	terms := textproc.Normalize(query)
	if len(terms) == 0 {
		return []Result{}
	}

	scores := accumulate(snap.index, terms)
	results := format(rank(scores), maxResults, snap.meta)

	log.Debug("search completed",
		"query", query,
		"terms", len(terms),
		"results", len(results),
		"duration", time.Since(start),
	)
	return results
}

// Stats reports on the served snapshot. With no snapshot loaded it returns a
// zeroed record flagged no_index; it never fails.
func (p *Pipeline) Stats() StatsRecord {
	snap := p.snap.Load()
	if snap == nil {
		return StatsRecord{
			Status:         StatusNoIndex,
			IndexDirectory: p.store.Dir(),
		}
	}

	record := StatsRecord{
		Status:         StatusReady,
		TotalDocuments: len(snap.meta),
		TotalTerms:     snap.index.TermCount(),
		IndexSize:      snap.index.PostingCount(),
		IndexDirectory: p.store.Dir(),
	}
	if record.TotalDocuments > 0 {
		avg := float64(record.IndexSize) / float64(record.TotalDocuments)
		record.AverageTermsPerDocument = math.Round(avg*100) / 100
	}
	return record
}
