// Package trace carries W3C-style trace identifiers through HTTP, WebSocket
// and gRPC requests and into log records.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// Header and metadata keys for propagation.
const (
	TraceIDKey     = "x-trace-id"
	SpanIDKey      = "x-span-id"
	TraceparentKey = "traceparent"
)

const (
	traceIDLen = 32
	spanIDLen  = 16
)

type ctxKey struct{}

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New starts a fresh trace.
func New() Context {
	return Context{TraceID: newID(traceIDLen), SpanID: newID(spanIDLen)}
}

// NewChild starts a span below parent.
func NewChild(parent Context) Context {
	return Context{TraceID: parent.TraceID, SpanID: newID(spanIDLen), ParentSpanID: parent.SpanID}
}

// Continue starts a local span under a caller-supplied trace and span ID,
// generating a trace ID when the caller sent none.
func Continue(traceID, callerSpanID string) Context {
	if traceID == "" {
		traceID = newID(traceIDLen)
	}
	return Context{TraceID: traceID, SpanID: newID(spanIDLen), ParentSpanID: callerSpanID}
}

// Traceparent formats c as a W3C traceparent header value (sampled).
func (c Context) Traceparent() string {
	return "00-" + c.TraceID + "-" + c.SpanID + "-01"
}

// ParseTraceparent reads the trace and parent span IDs from a W3C
// traceparent value. Only version 00 is understood.
func ParseTraceparent(v string) (traceID, spanID string, ok bool) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || parts[0] != "00" {
		return "", "", false
	}
	if !isHex(parts[1], traceIDLen) || !isHex(parts[2], spanIDLen) {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func isHex(s string, n int) bool {
	if len(s) != n || strings.Trim(s, "0") == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// FromContext extracts trace context from context.Context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext injects trace context into context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns the trace carried by ctx, starting one if needed.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// newID returns n random hex characters.
func newID(n int) string {
	b := make([]byte, n/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Span times one operation. Spans are not safe for concurrent use.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time
	Attrs     []slog.Attr
	Err       error
}

// StartSpan begins a child span of whatever trace ctx carries, or a new
// trace when there is none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	tc := New()
	if parent, ok := FromContext(ctx); ok && parent.TraceID != "" {
		tc = NewChild(parent)
	}
	s := &Span{Name: name, Ctx: tc, StartTime: time.Now()}
	return WithContext(ctx, tc), s
}

// SetAttr records a span attribute. Later values for the same key win.
func (s *Span) SetAttr(key string, val any) {
	for i := range s.Attrs {
		if s.Attrs[i].Key == key {
			s.Attrs[i].Value = slog.AnyValue(val)
			return
		}
	}
	s.Attrs = append(s.Attrs, slog.Any(key, val))
}

// Fail marks the span as failed.
func (s *Span) Fail(err error) {
	s.Err = err
}

// End closes the span and logs it at debug level.
func (s *Span) End() {
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now()
	slog.Debug("span finished", "span", s)
}

// Duration returns span duration, zero while the span is open.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.Attrs)+6)
	attrs = append(attrs,
		slog.String("name", s.Name),
		slog.String("trace_id", s.Ctx.TraceID),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.Duration()),
	)
	if s.Ctx.ParentSpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", s.Ctx.ParentSpanID))
	}
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	attrs = append(attrs, s.Attrs...)
	return slog.GroupValue(attrs...)
}

// Logger returns the default logger annotated with ctx's trace IDs.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	args := []any{"trace_id", tc.TraceID, "span_id", tc.SpanID}
	if tc.ParentSpanID != "" {
		args = append(args, "parent_span_id", tc.ParentSpanID)
	}
	return slog.Default().With(args...)
}
