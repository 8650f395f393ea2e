package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

type options struct {
	baseURL  string
	workers  int
	duration time.Duration
	limit    int
}

// searchResponse is the slice of the search envelope the report cares about.
type searchResponse struct {
	Count    int  `json:"count"`
	CacheHit bool `json:"cache_hit"`
}

// tally accumulates one worker's results. Workers never share state
// during the run; tallies merge after the last worker exits.
type tally struct {
	requests    int64
	successes   int64
	failures    int64
	cacheHits   int64
	zeroResults int64
	latencies   []time.Duration
	statuses    map[int]int64
}

func newTally() *tally {
	return &tally{statuses: make(map[int]int64)}
}

func (t *tally) merge(other *tally) {
	t.requests += other.requests
	t.successes += other.successes
	t.failures += other.failures
	t.cacheHits += other.cacheHits
	t.zeroResults += other.zeroResults
	t.latencies = append(t.latencies, other.latencies...)
	for code, n := range other.statuses {
		t.statuses[code] += n
	}
}

func (t *tally) observe(ctx context.Context, client *http.Client, target string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		t.requests++
		t.failures++
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		// Requests cut short by the run deadline are not service errors.
		if ctx.Err() != nil {
			return
		}
		t.requests++
		t.failures++
		return
	}
	defer resp.Body.Close()

	t.requests++
	t.statuses[resp.StatusCode]++
	t.latencies = append(t.latencies, elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.failures++
		io.Copy(io.Discard, resp.Body)
		return
	}
	t.successes++

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.CacheHit {
			t.cacheHits++
		}
		if body.Count == 0 {
			t.zeroResults++
		}
	}
	io.Copy(io.Discard, resp.Body)
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVar(&opts.workers, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&opts.limit, "limit", 10, "results per query")
	flag.Parse()

	queries := []string{
		"go concurrency patterns",
		"postgres query planner",
		"kubernetes operators",
		"rust borrow checker",
		"http request routing",
		"garbage collection tuning",
		"container networking",
		"tls certificate rotation",
		"message queue backpressure",
		"inverted index compression",
		"web crawler politeness",
		"redis cache eviction",
		"goroutine scheduling",
		"vector ranking",
		"database vacuum",
	}

	fmt.Println("=== TechScope Search Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.workers)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Queries:     %d unique\n", len(queries))
	fmt.Println()

	total := run(opts, queries)
	report(total, opts.duration)

	if total.requests == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func run(opts options, queries []string) *tally {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.workers * 2,
			MaxIdleConnsPerHost: opts.workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	results := make(chan *tally, opts.workers)
	var wg sync.WaitGroup
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results <- worker(ctx, id, client, opts, queries)
		}(w)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	fmt.Print("Running")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	total := newTally()
	for {
		select {
		case t, ok := <-results:
			if !ok {
				fmt.Println(" done!")
				fmt.Println()
				return total
			}
			total.merge(t)
		case <-ticker.C:
			fmt.Print(".")
		}
	}
}

// worker hammers the search endpoint until the run deadline, cycling
// through the query list from a per-worker offset so workers do not
// move in lockstep.
func worker(ctx context.Context, id int, client *http.Client, opts options, queries []string) *tally {
	t := newTally()
	for i := id; ctx.Err() == nil; i++ {
		query := queries[i%len(queries)]
		t.observe(ctx, client, searchURL(opts.baseURL, query, opts.limit))
	}
	return t
}

func searchURL(base, query string, limit int) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	return base + "/api/v1/search?" + v.Encode()
}

func report(t *tally, duration time.Duration) {
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", t.requests)
	fmt.Printf("Successful:      %d\n", t.successes)
	fmt.Printf("Errors:          %d\n", t.failures)
	if t.requests > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", pct(t.failures, t.requests))
		fmt.Printf("Requests/sec:    %.2f\n", float64(t.requests)/duration.Seconds())
	}
	if t.successes > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", pct(t.cacheHits, t.successes))
		fmt.Printf("Zero Results:    %.2f%%\n", pct(t.zeroResults, t.successes))
	}

	if len(t.latencies) > 0 {
		sort.Slice(t.latencies, func(i, j int) bool { return t.latencies[i] < t.latencies[j] })
		var sum time.Duration
		for _, l := range t.latencies {
			sum += l
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", t.latencies[0])
		fmt.Printf("Avg:    %s\n", sum/time.Duration(len(t.latencies)))
		for _, p := range []int{50, 90, 95, 99} {
			fmt.Printf("P%d:    %s\n", p, percentile(t.latencies, p))
		}
		fmt.Printf("Max:    %s\n", t.latencies[len(t.latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(t.statuses))
	for code := range t.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, t.statuses[code])
	}
}

func pct(part, whole int64) float64 {
	return float64(part) / float64(whole) * 100
}

// percentile picks the ceil-rank entry so P99 of 100 samples is the
// 99th value, not an interpolation.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[idx-1]
}
