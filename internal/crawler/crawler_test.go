package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/pagestore"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
)

func testConfig(seed string, maxPages, workers int) config.CrawlerConfig {
	return config.CrawlerConfig{
		SeedURLs:     []string{seed},
		MaxPages:     maxPages,
		Workers:      workers,
		FetchTimeout: 5 * time.Second,
		CrawlDelay:   time.Millisecond,
		UserAgent:    "techscope-test",
	}
}

func newPageStore(t *testing.T) *pagestore.Store {
	t.Helper()
	store, err := pagestore.New(t.TempDir(), "none")
	if err != nil {
		t.Fatalf("pagestore.New: %v", err)
	}
	return store
}

func htmlPage(title, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>%s</body></html>`, title, body)
}

// newTestSite serves a small site: the root links to two pages, an asset, and
// an external host; page a links onward to a 404 and a non-HTML endpoint.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, htmlPage("Home", `
			<a href="/a">A</a>
			<a href="/b">B</a>
			<a href="/style.css">asset</a>
			<a href="https://other.invalid/x">external</a>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("Page A", `
			<a href="/b">B again</a>
			<a href="/missing">gone</a>
			<a href="/data">api</a>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("Page B", `<p>leaf page</p>`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not": "html"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlStoresSameHostHTML(t *testing.T) {
	srv := newTestSite(t)
	store := newPageStore(t)

	c := New(testConfig(srv.URL, 10, 2), store, nil, nil)
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Scheduled: root, a, b, missing, data. Stored: the three HTML pages.
	if stats.Pages != 5 {
		t.Errorf("Pages = %d, want 5", stats.Pages)
	}
	if stats.Stored != 3 {
		t.Errorf("Stored = %d, want 3", stats.Stored)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("page store holds %d pages, want 3", n)
	}

	docs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, doc := range docs {
		if doc.Meta.StatusCode != 200 {
			t.Errorf("stored page %s has status %d", doc.Meta.URL, doc.Meta.StatusCode)
		}
		if doc.Meta.FetchedAt.IsZero() {
			t.Errorf("stored page %s has no fetch time", doc.Meta.URL)
		}
	}
}

func TestCrawlHonorsMaxPages(t *testing.T) {
	srv := newTestSite(t)
	store := newPageStore(t)

	c := New(testConfig(srv.URL, 2, 2), store, nil, nil)
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
	n, _ := store.Count()
	if n > 2 {
		t.Errorf("stored %d pages with a budget of 2", n)
	}
}

func TestCrawlDedupesURLVariants(t *testing.T) {
	var hitsA atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("Home", `
			<a href="/a">one</a>
			<a href="/a/">two</a>
			<a href="/a#frag">three</a>
			<a href="/a?utm=x">four</a>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		hitsA.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("A", `<p>a</p>`))
	})
	mux.HandleFunc("/a/", func(w http.ResponseWriter, r *http.Request) {
		hitsA.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("A", `<p>a</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(testConfig(srv.URL, 10, 2), newPageStore(t), nil, nil)
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := hitsA.Load(); got != 1 {
		t.Errorf("/a fetched %d times, want 1", got)
	}
	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
}

func TestCrawlRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, htmlPage("Recovered", `<p>fine now</p>`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, 1, 1), newPageStore(t), nil, nil)
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := attempts.Load(); got != 2 {
		t.Errorf("server saw %d attempts, want 2", got)
	}
	if stats.Stored != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 stored", stats)
	}
}

func TestCrawlInvalidSeed(t *testing.T) {
	c := New(testConfig("not a url", 5, 1), newPageStore(t), nil, nil)
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Pages != 0 || stats.Stored != 0 {
		t.Errorf("invalid seed produced stats %+v", stats)
	}
}
