// Package integration contains tests that verify the interaction between
// multiple engine components. The crawl-to-query flow runs fully in-process
// against httptest servers; the database and cache tests skip themselves when
// PostgreSQL or Redis are unavailable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics/aggregator"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/crawler"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/indexer"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/pagestore"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/registry"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/search"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/searchd"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/middleware"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/postgres"
	pkgredis "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/redis"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newCrawlSite serves a four-page fixture site: the root links to three
// articles on distinct topics so relevance assertions have unambiguous
// answers.
func newCrawlSite(t *testing.T) *httptest.Server {
	t.Helper()

	page := func(title, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, `<html><head><title>%s</title></head><body>%s</body></html>`, title, body)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", page("Fixture Index",
		`<a href="/go">go</a> <a href="/db">db</a> <a href="/rust">rust</a> welcome to the fixture corpus`))
	mux.HandleFunc("/go", page("Go Concurrency Patterns",
		`goroutines and channels make concurrency tractable, goroutines are cheap and channels compose`))
	mux.HandleFunc("/db", page("Postgres Internals",
		`vacuum reclaims dead tuples while btree indexes keep lookups fast`))
	mux.HandleFunc("/rust", page("Rust Ownership",
		`the borrow checker enforces ownership and lifetimes at compile time`))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testCrawlerConfig(seed string) config.CrawlerConfig {
	return config.CrawlerConfig{
		SeedURLs:     []string{seed},
		MaxPages:     10,
		Workers:      2,
		FetchTimeout: 5 * time.Second,
		CrawlDelay:   time.Millisecond,
		UserAgent:    "TechScopeBot-integration/1.0",
	}
}

// newSearchServer wires the real handler and middleware chain the way
// cmd/searchd does, minus metrics and caching.
func newSearchServer(t *testing.T, pipeline *search.Pipeline) *httptest.Server {
	t.Helper()

	h := searchd.NewHandler(pipeline, nil, nil, nil, 10, 100)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)

	chain := middleware.RequestID(middleware.Timeout(5 * time.Second)(mux))
	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
	return resp.StatusCode
}

// ---------------------------------------------------------------------------
// Crawl -> index -> serve
// ---------------------------------------------------------------------------

// TestCrawlIndexSearchFlow drives the whole data plane in-process: crawl a
// fixture site into the page store, build the index from it, serve it over
// HTTP, and check that queries land on the right pages.
func TestCrawlIndexSearchFlow(t *testing.T) {
	ctx := context.Background()
	site := newCrawlSite(t)

	pages, err := pagestore.New(t.TempDir(), "zstd")
	if err != nil {
		t.Fatalf("creating page store: %v", err)
	}

	c := crawler.New(testCrawlerConfig(site.URL), pages, nil, nil)
	stats, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if stats.Stored != 4 {
		t.Fatalf("Stored = %d, want 4 fixture pages", stats.Stored)
	}

	docs, err := pages.List()
	if err != nil {
		t.Fatalf("listing pages: %v", err)
	}
	ixStore := index.NewStore(t.TempDir())
	if _, err := indexer.NewBuilder(ixStore, nil, nil, nil).Build(ctx, docs); err != nil {
		t.Fatalf("building index: %v", err)
	}

	pipeline := search.NewPipeline(ixStore)
	if err := pipeline.Reload(); err != nil {
		t.Fatalf("loading index: %v", err)
	}
	srv := newSearchServer(t, pipeline)

	var resp searchd.SearchResponse
	if code := getJSON(t, srv.URL+"/api/v1/search?q=goroutines", &resp); code != 200 {
		t.Fatalf("search status = %d", code)
	}
	if resp.Count != 1 {
		t.Fatalf("Count = %d, want the single goroutine page, got %+v", resp.Count, resp.Results)
	}
	hit := resp.Results[0]
	if hit.Meta == nil || hit.Meta.URL != site.URL+"/go" {
		t.Errorf("hit URL = %+v, want %s/go", hit.Meta, site.URL)
	}
	if hit.Meta != nil && hit.Meta.Title != "Go Concurrency Patterns" {
		t.Errorf("hit title = %q, want extracted from markup", hit.Meta.Title)
	}

	var dbResp searchd.SearchResponse
	getJSON(t, srv.URL+"/api/v1/search?q=vacuum+btree", &dbResp)
	if dbResp.Count != 1 || dbResp.Results[0].Meta.URL != site.URL+"/db" {
		t.Errorf("vacuum btree hit = %+v, want the postgres page", dbResp.Results)
	}

	var statsBody map[string]any
	if code := getJSON(t, srv.URL+"/api/v1/stats", &statsBody); code != 200 {
		t.Fatalf("stats status = %d", code)
	}
	if statsBody["status"] != "ready" || statsBody["total_documents"] != 4.0 {
		t.Errorf("stats = %v, want ready with 4 documents", statsBody)
	}
}

// TestReloadPicksUpRebuiltIndex rebuilds the index with an extra page and
// checks the serving snapshot swaps on POST /api/v1/index/reload.
func TestReloadPicksUpRebuiltIndex(t *testing.T) {
	ctx := context.Background()
	site := newCrawlSite(t)

	pages, err := pagestore.New(t.TempDir(), "none")
	if err != nil {
		t.Fatal(err)
	}
	c := crawler.New(testCrawlerConfig(site.URL), pages, nil, nil)
	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	ixStore := index.NewStore(t.TempDir())
	builder := indexer.NewBuilder(ixStore, nil, nil, nil)
	docs, err := pages.List()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := builder.Build(ctx, docs); err != nil {
		t.Fatal(err)
	}

	pipeline := search.NewPipeline(ixStore)
	if err := pipeline.Reload(); err != nil {
		t.Fatal(err)
	}
	srv := newSearchServer(t, pipeline)

	var before searchd.SearchResponse
	getJSON(t, srv.URL+"/api/v1/search?q=kubernetes", &before)
	if before.Count != 0 {
		t.Fatalf("unexpected kubernetes hits before rebuild: %+v", before.Results)
	}

	// A new page lands in the store and a rebuild runs, as the indexer
	// binary would.
	_, err = pages.Put("https://example.com/k8s",
		[]byte(`<html><head><title>Kubernetes Operators</title></head><body>kubernetes operators reconcile cluster state</body></html>`),
		document.Metadata{URL: "https://example.com/k8s", StatusCode: 200})
	if err != nil {
		t.Fatalf("storing new page: %v", err)
	}
	docs, err = pages.List()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := builder.Build(ctx, docs); err != nil {
		t.Fatalf("rebuilding index: %v", err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/index/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}

	var after searchd.SearchResponse
	getJSON(t, srv.URL+"/api/v1/search?q=kubernetes", &after)
	if after.Count != 1 {
		t.Fatalf("kubernetes hits after reload = %d, want 1", after.Count)
	}
	if after.Results[0].Meta == nil || after.Results[0].Meta.Title != "Kubernetes Operators" {
		t.Errorf("hit = %+v, want the freshly indexed page", after.Results[0])
	}
}

// ---------------------------------------------------------------------------
// Registry (PostgreSQL)
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "techscope_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "techscope"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// TestRegistryLifecycle walks one page through PENDING -> INDEXED -> PENDING
// against a real database.
func TestRegistryLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	reg := registry.New(db)
	if err := reg.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}

	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), `DELETE FROM crawled_pages WHERE id = $1`, id)
	})

	if err := reg.UpsertPending(ctx, id, "https://example.com/it", []byte("body"), 200, time.Now()); err != nil {
		t.Fatalf("upserting page: %v", err)
	}
	if got := pageStatus(t, db, id); got != registry.StatusPending {
		t.Errorf("status after crawl = %q, want PENDING", got)
	}

	if err := reg.MarkIndexed(ctx, []string{id}); err != nil {
		t.Fatalf("marking indexed: %v", err)
	}
	if got := pageStatus(t, db, id); got != registry.StatusIndexed {
		t.Errorf("status after index build = %q, want INDEXED", got)
	}

	// A re-crawl resets the lifecycle.
	if err := reg.UpsertPending(ctx, id, "https://example.com/it", []byte("body v2"), 200, time.Now()); err != nil {
		t.Fatalf("re-upserting page: %v", err)
	}
	if got := pageStatus(t, db, id); got != registry.StatusPending {
		t.Errorf("status after re-crawl = %q, want PENDING again", got)
	}
}

func pageStatus(t *testing.T, db *postgres.Client, id string) string {
	t.Helper()
	var status string
	err := db.DB.QueryRowContext(context.Background(),
		`SELECT status FROM crawled_pages WHERE id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("querying page status: %v", err)
	}
	return status
}

// TestAnalyticsSnapshotStore persists and reads back rollup snapshots against
// a real database.
func TestAnalyticsSnapshotStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	store := aggregator.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}

	// The rows carry a unique total so this run's snapshots are identifiable
	// among whatever else the table holds.
	marker := time.Now().UnixNano()
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(),
			`DELETE FROM analytics_snapshots WHERE (data->>'total_searches')::bigint IN ($1, $2)`,
			marker, marker+1)
	})

	older := analytics.AggregatedStats{TotalSearches: marker, IndexBuilds: 1}
	newer := analytics.AggregatedStats{TotalSearches: marker + 1, IndexBuilds: 2}
	if err := store.SaveSnapshot(ctx, older); err != nil {
		t.Fatalf("saving first snapshot: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := store.SaveSnapshot(ctx, newer); err != nil {
		t.Fatalf("saving second snapshot: %v", err)
	}

	latest, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("loading latest snapshot: %v", err)
	}
	if latest == nil || latest.TotalSearches != marker+1 {
		t.Fatalf("latest snapshot = %+v, want total_searches %d", latest, marker+1)
	}

	list, err := store.ListSnapshots(ctx, 100)
	if err != nil {
		t.Fatalf("listing snapshots: %v", err)
	}
	posOlder, posNewer := -1, -1
	for i, s := range list {
		switch s.TotalSearches {
		case marker:
			posOlder = i
		case marker + 1:
			posNewer = i
		}
	}
	if posOlder == -1 || posNewer == -1 {
		t.Fatalf("saved snapshots missing from listing (older at %d, newer at %d)", posOlder, posNewer)
	}
	if posNewer > posOlder {
		t.Errorf("listing order: newer at %d, older at %d, want newest first", posNewer, posOlder)
	}
}

// ---------------------------------------------------------------------------
// Query cache (Redis)
// ---------------------------------------------------------------------------

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) (*pkgredis.Client, config.RedisConfig) {
	t.Helper()
	cfg := config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		CacheTTL: 30 * time.Second,
	}
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, cfg
}

// TestQueryCacheRoundTrip checks compute-once semantics and invalidation
// against a real Redis.
func TestQueryCacheRoundTrip(t *testing.T) {
	client, cfg := skipIfNoRedis(t)
	ctx := context.Background()

	cache := searchd.NewQueryCache(client, cfg)
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("clearing cache namespace: %v", err)
	}

	query := fmt.Sprintf("integration cache %d", time.Now().UnixNano())
	fixture := []search.Result{{DocID: "doc1", Score: 0.75}}
	computes := 0
	compute := func() []search.Result {
		computes++
		return fixture
	}

	results, hit := cache.GetOrCompute(ctx, query, 10, compute)
	if hit || computes != 1 {
		t.Fatalf("first lookup: hit=%v computes=%d, want miss and one compute", hit, computes)
	}
	if len(results) != 1 || results[0].DocID != "doc1" {
		t.Fatalf("first lookup results = %+v", results)
	}

	results, hit = cache.GetOrCompute(ctx, query, 10, compute)
	if !hit || computes != 1 {
		t.Errorf("second lookup: hit=%v computes=%d, want cache hit", hit, computes)
	}
	if len(results) != 1 || results[0].Score != 0.75 {
		t.Errorf("cached results = %+v", results)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidating: %v", err)
	}
	if _, hit = cache.GetOrCompute(ctx, query, 10, compute); hit || computes != 2 {
		t.Errorf("post-invalidate lookup: hit=%v computes=%d, want recompute", hit, computes)
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("cache stats = %d hits / %d misses, want 1/2", hits, misses)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
