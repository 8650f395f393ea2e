// Package indexer orchestrates full index builds: normalize every stored
// page, score the corpus with TF-IDF, pivot into the inverted index, and
// persist the index and metadata records. Builds are always from scratch;
// there is no incremental path.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/registry"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/textproc"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/tfidf"
	apperrors "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/errors"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/resilience"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/tracing"
)

// registryTimeout bounds the post-build registry write so a stuck database
// cannot hang an otherwise finished build.
const registryTimeout = 30 * time.Second

// BuildStats summarize one finished build.
type BuildStats struct {
	Documents int
	Terms     int
	Postings  int
	Elapsed   time.Duration
}

type Builder struct {
	store    *index.Store
	calc     *tfidf.Calculator
	reg      *registry.Registry
	producer *kafka.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewBuilder creates a Builder. reg, producer, and m may be nil; the build
// itself needs only the store.
func NewBuilder(store *index.Store, reg *registry.Registry, producer *kafka.Producer, m *metrics.Metrics) *Builder {
	return &Builder{
		store:    store,
		calc:     tfidf.NewCalculator(),
		reg:      reg,
		producer: producer,
		metrics:  m,
		logger:   logger.WithComponent("indexer"),
	}
}

// Build runs the full pipeline over docs and persists both index records.
// Unlike the query path, build failures propagate: a broken build must be
// visible, not papered over.
func (b *Builder) Build(ctx context.Context, docs []document.Document) (stats BuildStats, err error) {
	start := time.Now()
	defer func() {
		if b.metrics == nil {
			return
		}
		if err != nil {
			b.metrics.IndexBuildsTotal.WithLabelValues("failure").Inc()
		} else {
			b.metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
			b.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
			b.metrics.DocsIndexedTotal.Add(float64(stats.Documents))
			b.metrics.IndexDocuments.Set(float64(stats.Documents))
			b.metrics.IndexTerms.Set(float64(stats.Terms))
		}
	}()

	if len(docs) == 0 {
		return BuildStats{}, fmt.Errorf("%w: page store is empty", apperrors.ErrNoDocuments)
	}

	ctx, span := tracing.StartSpan(ctx, "index.build", uuid.NewString())
	defer func() {
		span.End()
		span.Log()
	}()

	b.logger.Info("build starting", "documents", len(docs))
	prepCtx, prepSpan := tracing.StartChildSpan(ctx, "prepare")
	corpus, meta, err := b.prepare(prepCtx, docs)
	prepSpan.End()
	if err != nil {
		return BuildStats{}, err
	}

	scoreCtx, scoreSpan := tracing.StartChildSpan(ctx, "score")
	vectors, err := b.calc.Vectors(scoreCtx, corpus)
	scoreSpan.End()
	if err != nil {
		return BuildStats{}, fmt.Errorf("scoring corpus: %w", err)
	}

	_, persistSpan := tracing.StartChildSpan(ctx, "persist")
	ix := index.Build(vectors)
	saveErr := b.store.Save(ix, meta)
	persistSpan.End()
	if saveErr != nil {
		return BuildStats{}, fmt.Errorf("persisting index: %w", saveErr)
	}

	stats = BuildStats{
		Documents: len(docs),
		Terms:     ix.TermCount(),
		Postings:  ix.PostingCount(),
		Elapsed:   time.Since(start),
	}
	span.SetAttr("documents", stats.Documents)
	span.SetAttr("terms", stats.Terms)
	span.SetAttr("postings", stats.Postings)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	regErr := resilience.WithTimeout(ctx, registryTimeout, "registry.mark_indexed", func(ctx context.Context) error {
		return b.reg.MarkIndexed(ctx, ids)
	})
	if regErr != nil {
		b.logger.Warn("marking pages indexed failed", "error", regErr)
	}
	b.publishComplete(ctx, stats)

	b.logger.Info("build complete",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// prepare normalizes every document in parallel and assembles the corpus and
// the metadata table. HTML documents get their title extracted and token
// counts recorded on the way through.
func (b *Builder) prepare(ctx context.Context, docs []document.Document) (map[string][]string, map[string]document.Metadata, error) {
	type prepared struct {
		tokens []string
		meta   document.Metadata
	}
	results := make([]prepared, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var tokens []string
			m := doc.Meta
			if doc.HTML {
				tokens = textproc.NormalizeHTML(doc.Content)
				if m.Title == "" {
					m.Title = textproc.ExtractTitle(doc.Content)
				}
			} else {
				tokens = textproc.Normalize(doc.Content)
			}

			unique := make(map[string]struct{}, len(tokens))
			for _, t := range tokens {
				unique[t] = struct{}{}
			}
			extra := make(map[string]any, len(m.Extra)+2)
			for k, v := range m.Extra {
				extra[k] = v
			}
			extra["processed_tokens"] = len(tokens)
			extra["unique_tokens"] = len(unique)
			m.Extra = extra

			results[i] = prepared{tokens: tokens, meta: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	corpus := make(map[string][]string, len(docs))
	meta := make(map[string]document.Metadata, len(docs))
	for i, doc := range docs {
		corpus[doc.ID] = results[i].tokens
		meta[doc.ID] = results[i].meta
	}
	return corpus, meta, nil
}

func (b *Builder) publishComplete(ctx context.Context, stats BuildStats) {
	if b.producer == nil {
		return
	}
	event := analytics.IndexCompleteEvent{
		Type:      analytics.EventIndexComplete,
		Documents: stats.Documents,
		Terms:     stats.Terms,
		Postings:  stats.Postings,
		LatencyMs: stats.Elapsed.Milliseconds(),
		IndexDir:  b.store.Dir(),
		Timestamp: time.Now().UTC(),
	}
	if err := b.producer.Publish(ctx, kafka.Event{Key: string(event.Type), Value: event}); err != nil {
		b.logger.Warn("publishing index.complete failed", "error", err)
	}
}
