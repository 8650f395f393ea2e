// Package crawler implements a polite breadth-first web crawler. Each seed
// URL is crawled independently with its own frontier and visited set, capped
// at a fixed number of pages, following only same-host HTML links. Fetched
// pages land in the page store and, when a registry is configured, are
// recorded there as PENDING.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/pagestore"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/registry"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/resilience"
)

// registryTimeout bounds each registry write so a slow database cannot stall
// the crawl loop.
const registryTimeout = 10 * time.Second

// Stats summarize one crawl run.
type Stats struct {
	Pages   int
	Stored  int
	Skipped int
	Failed  int
	Elapsed time.Duration
}

type Crawler struct {
	cfg     config.CrawlerConfig
	store   *pagestore.Store
	reg     *registry.Registry
	fetcher *fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Crawler. reg and m may be nil.
func New(cfg config.CrawlerConfig, store *pagestore.Store, reg *registry.Registry, m *metrics.Metrics) *Crawler {
	return &Crawler{
		cfg:     cfg,
		store:   store,
		reg:     reg,
		fetcher: newFetcher(cfg, m),
		metrics: m,
		logger:  logger.WithComponent("crawler"),
	}
}

// Run crawls every configured seed and reports aggregate stats. A cancelled
// context stops the crawl between fetch waves; pages already stored stay
// stored.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var total Stats

	c.logger.Info("crawl starting", "seeds", len(c.cfg.SeedURLs), "max_pages", c.cfg.MaxPages)
	for i, seed := range c.cfg.SeedURLs {
		if ctx.Err() != nil {
			break
		}
		c.logger.Info("crawling seed", "seed", seed, "progress", i+1, "of", len(c.cfg.SeedURLs))
		stats := c.crawlSeed(ctx, seed)
		c.logger.Info("seed finished",
			"seed", seed,
			"pages", stats.Pages,
			"stored", stats.Stored,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
		total.Pages += stats.Pages
		total.Stored += stats.Stored
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
	}

	total.Elapsed = time.Since(start)
	c.logger.Info("crawl complete",
		"pages", total.Pages,
		"stored", total.Stored,
		"skipped", total.Skipped,
		"failed", total.Failed,
		"elapsed", total.Elapsed,
	)
	return total, ctx.Err()
}

// crawlSeed runs a breadth-first crawl from one seed with a fresh frontier.
// URLs are fetched in waves of up to Workers concurrent requests; every
// scheduled URL counts against MaxPages whether or not it yields a page.
func (c *Crawler) crawlSeed(ctx context.Context, seed string) Stats {
	var stats Stats

	seedURL, err := url.Parse(seed)
	if err != nil || !IsValidLink(seed) {
		c.logger.Warn("skipping invalid seed", "seed", seed, "error", err)
		return stats
	}

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	queue := []string{NormalizeURL(seed)}
	seen := map[string]struct{}{queue[0]: {}}

	for len(queue) > 0 && stats.Pages < c.cfg.MaxPages && ctx.Err() == nil {
		batchSize := workers
		if remaining := c.cfg.MaxPages - stats.Pages; batchSize > remaining {
			batchSize = remaining
		}
		if batchSize > len(queue) {
			batchSize = len(queue)
		}
		batch := queue[:batchSize]
		queue = queue[batchSize:]
		stats.Pages += len(batch)

		outcomes := c.fetchWave(ctx, batch)
		for i, outcome := range outcomes {
			pageURL := batch[i]
			switch {
			case outcome.err != nil:
				stats.Failed++
				c.count("failed")
				c.logger.Warn("page failed", "url", pageURL, "error", outcome.err)
			case outcome.result.status != 200 || !isHTML(outcome.result.contentType):
				stats.Skipped++
				c.count("skipped")
				c.logger.Debug("page skipped",
					"url", pageURL,
					"status", outcome.result.status,
					"content_type", outcome.result.contentType,
				)
			default:
				if c.storePage(ctx, pageURL, outcome.result) {
					stats.Stored++
					c.count("stored")
				} else {
					stats.Failed++
					c.count("failed")
				}
				// Relative links resolve against the page they appear on.
				base, perr := url.Parse(pageURL)
				if perr != nil {
					base = seedURL
				}
				for _, link := range ExtractLinks(string(outcome.result.body), base) {
					normalized := NormalizeURL(link)
					if _, ok := seen[normalized]; ok {
						continue
					}
					seen[normalized] = struct{}{}
					queue = append(queue, normalized)
				}
			}
		}
	}
	return stats
}

type waveOutcome struct {
	result *fetchResult
	err    error
}

func (c *Crawler) fetchWave(ctx context.Context, batch []string) []waveOutcome {
	outcomes := make([]waveOutcome, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, pageURL := range batch {
		g.Go(func() error {
			res, err := c.fetcher.fetch(gctx, pageURL)
			outcomes[i] = waveOutcome{result: res, err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (c *Crawler) storePage(ctx context.Context, pageURL string, res *fetchResult) bool {
	now := time.Now().UTC()
	meta := document.Metadata{
		URL:           pageURL,
		StatusCode:    res.status,
		ContentLength: len(res.body),
		FetchedAt:     now,
	}
	id, err := c.store.Put(pageURL, res.body, meta)
	if err != nil {
		c.logger.Error("storing page failed", "url", pageURL, "error", err)
		return false
	}
	regErr := resilience.WithTimeout(ctx, registryTimeout, "registry.upsert_pending", func(ctx context.Context) error {
		return c.reg.UpsertPending(ctx, id, pageURL, res.body, res.status, now)
	})
	if regErr != nil {
		c.logger.Warn("registry upsert failed", "url", pageURL, "error", regErr)
	}
	return true
}

func (c *Crawler) count(outcome string) {
	if c.metrics != nil {
		c.metrics.PagesCrawledTotal.WithLabelValues(outcome).Inc()
	}
}

func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml+xml")
}
