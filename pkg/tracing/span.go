// Package tracing times multi-stage operations as span trees. A span rides
// in the context, children attach themselves to the parent found there, and
// the root logs the whole tree through slog when the operation finishes.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage of an operation. Create spans through StartSpan
// and StartChildSpan, not directly.
type Span struct {
	Name     string
	TraceID  string
	Started  time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    map[string]any
	ended    bool
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:    name,
		TraceID: traceID,
		Started: time.Now(),
		attrs:   make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan opens a span attached to the parent carried by ctx. Without
// a parent the child acts as a root with an empty trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		Name:    name,
		Started: time.Now(),
		attrs:   make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End freezes the span's duration. Later calls keep the first measurement.
func (s *Span) End() {
	s.mu.Lock()
	if !s.ended {
		s.Duration = time.Since(s.Started)
		s.ended = true
	}
	s.mu.Unlock()
}

// SetAttr records an attribute reported when the span is logged.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Log writes the span and its descendants to slog, one line per span.
// Spans that were never ended report their duration as of the call.
func (s *Span) Log() {
	s.logAtDepth(0)
}

func (s *Span) logAtDepth(depth int) {
	s.mu.Lock()
	duration := s.Duration
	if !s.ended {
		duration = time.Since(s.Started)
	}
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", duration.Milliseconds(),
		"depth", depth,
	}
	for _, k := range keys {
		args = append(args, k, s.attrs[k])
	}
	children := make([]*Span, len(s.children))
	copy(children, s.children)
	s.mu.Unlock()

	slog.Info("span", args...)
	for _, child := range children {
		child.logAtDepth(depth + 1)
	}
}
