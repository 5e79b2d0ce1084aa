// Package tracing implements minimal in-process request tracing. A request
// gets a root span keyed by its request id, operations underneath it attach
// child spans through the context, and the finished tree is emitted as
// structured log lines. There is no wire propagation; the search pipeline
// runs in one process.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed operation. Child spans are attached concurrently by
// whatever goroutines the operation fans out to.
type Span struct {
	Name    string
	TraceID string

	started time.Time
	elapsed time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    map[string]any
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:    name,
		TraceID: traceID,
		started: time.Now(),
		attrs:   map[string]any{},
	}
}

// StartSpan opens a root span under the given trace id and stores it in the
// returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one stored in ctx. Without a parent
// it behaves like a root span with an empty trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := newSpan(name, "")
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

// SpanFromContext returns the span stored in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End stamps the span's duration. Safe to call once per span.
func (s *Span) End() {
	s.elapsed = time.Since(s.started)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Log emits the span and its subtree as one log line per span, depth-first.
func (s *Span) Log() {
	s.log(0)
}

func (s *Span) log(depth int) {
	args := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.elapsed.Milliseconds(),
		"depth", depth,
	}
	s.mu.Lock()
	for k, v := range s.attrs {
		args = append(args, k, v)
	}
	children := s.children
	s.mu.Unlock()
	slog.Info("span", args...)
	for _, c := range children {
		c.log(depth + 1)
	}
}
