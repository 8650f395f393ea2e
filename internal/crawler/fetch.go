package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/resilience"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

type fetchResult struct {
	body        []byte
	status      int
	contentType string
}

// fetcher performs polite page fetches: a shared rate limiter spaces
// requests out, transport errors and 5xx responses are retried with
// backoff, and a per-host circuit breaker stops hammering a dead host.
type fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

func newFetcher(cfg config.CrawlerConfig, m *metrics.Metrics) *fetcher {
	delay := cfg.CrawlDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &fetcher{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		userAgent: cfg.UserAgent,
		metrics:   m,
		breakers:  make(map[string]*resilience.CircuitBreaker),
		logger:    logger.WithComponent("fetcher"),
	}
}

// fetch retrieves one page, honoring the rate limiter and the host's
// circuit breaker. Non-2xx responses are returned, not errors; callers
// decide whether to keep them.
func (f *fetcher) fetch(ctx context.Context, rawurl string) (*fetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	breaker := f.breakerFor(u.Host)
	defer func() {
		if f.metrics != nil {
			f.metrics.CircuitBreakerState.WithLabelValues(u.Host).Set(float64(breaker.GetState()))
		}
	}()

	var result *fetchResult
	err = breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch "+u.Host, resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		}, func() error {
			res, ferr := f.fetchOnce(ctx, rawurl)
			if ferr != nil {
				return ferr
			}
			if res.status >= 500 {
				return fmt.Errorf("server error: %d", res.status)
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fetcher) fetchOnce(ctx context.Context, rawurl string) (*fetchResult, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawurl, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", rawurl, err)
	}
	if f.metrics != nil {
		f.metrics.CrawlFetchDuration.Observe(time.Since(start).Seconds())
	}
	return &fetchResult{
		body:        body,
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (f *fetcher) breakerFor(host string) *resilience.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	breaker, ok := f.breakers[host]
	if !ok {
		breaker = resilience.NewCircuitBreaker(host, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		})
		f.breakers[host] = breaker
	}
	return breaker
}
