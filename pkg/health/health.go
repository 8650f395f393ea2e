// Package health aggregates per-dependency probes into liveness and
// readiness endpoints. Liveness only proves the process is serving
// requests; readiness runs every registered probe in parallel and
// reports the worst outcome.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

// readyTimeout bounds a full readiness pass. A probe that ignores its
// context deadline delays the response up to this long.
const readyTimeout = 5 * time.Second

// Status is the health of a single component or of the whole service.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses from best to worst so aggregation can keep
// the worst one seen.
func severity(s Status) int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes one dependency. Implementations should honor the
// context deadline.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the outcome of a single probe. Latency is filled
// in by the Checker.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the readiness document served to probes and operators.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the registered probes and serves the health endpoints.
type Checker struct {
	mu     sync.RWMutex
	probes map[string]Check
	logger *slog.Logger
}

// NewChecker returns a Checker with no probes registered. A probe-less
// checker reports up, which suits services with no hard dependencies.
func NewChecker() *Checker {
	return &Checker{
		probes: make(map[string]Check),
		logger: logger.WithComponent("health"),
	}
}

// Register adds a named probe. Re-registering a name replaces the
// previous probe.
func (c *Checker) Register(name string, probe Check) {
	c.mu.Lock()
	c.probes[name] = probe
	c.mu.Unlock()
}

type probeResult struct {
	name   string
	health ComponentHealth
}

// Run executes every registered probe concurrently and aggregates the
// results. The report status is the worst component status, so one
// down dependency marks the whole service down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Check, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	results := make(chan probeResult, len(probes))
	for name, probe := range probes {
		go func(name string, probe Check) {
			start := time.Now()
			h := probe(ctx)
			h.Latency = time.Since(start).Round(time.Millisecond).String()
			results <- probeResult{name: name, health: h}
		}(name, probe)
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(probes)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range probes {
		r := <-results
		if r.health.Status != StatusUp {
			c.logger.Warn("probe not up",
				"check", r.name,
				"status", r.health.Status,
				"message", r.health.Message)
		}
		if severity(r.health.Status) > severity(report.Status) {
			report.Status = r.health.Status
		}
		report.Components[r.name] = r.health
	}
	return report
}

// LiveHandler answers liveness probes. It never runs the registered
// probes; a live process with a down dependency is still live.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full Report. Anything
// short of a fully up service returns 503 so load balancers stop
// routing to it.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUp {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
