package trace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestIDLengths(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("new context should not have parent span ID")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newID(traceIDLen)
		if seen[id] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestContinue(t *testing.T) {
	tc := Continue("abc", "caller")
	if tc.TraceID != "abc" || tc.ParentSpanID != "caller" || len(tc.SpanID) != 16 {
		t.Errorf("Continue() = %+v", tc)
	}
	if tc := Continue("", ""); len(tc.TraceID) != 32 {
		t.Error("Continue without trace ID should generate one")
	}
}

func TestEnsureContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("should not find trace context in empty context")
	}

	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}
	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestSpans(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "locate")
	_, child := StartSpan(ctx, "search")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}

	if parent.Duration() != 0 {
		t.Error("open span should report zero duration")
	}
	parent.SetAttr("icon", "save")
	parent.SetAttr("matches", 1)
	parent.SetAttr("matches", 2)
	parent.End()
	if parent.EndTime.IsZero() {
		t.Error("End should set EndTime")
	}
	end := parent.EndTime
	parent.End()
	if parent.EndTime != end {
		t.Error("second End should not move EndTime")
	}
	if len(parent.Attrs) != 2 || parent.Attrs[1].Value.Int64() != 2 {
		t.Errorf("attrs = %v, want icon then matches=2", parent.Attrs)
	}
	if parent.LogValue().Kind().String() != "Group" {
		t.Error("LogValue should be a group")
	}
}

func TestSpanFail(t *testing.T) {
	_, s := StartSpan(context.Background(), "refresh")
	s.Fail(errors.New("scrot missing"))
	s.End()

	var found bool
	for _, a := range s.LogValue().Group() {
		if a.Key == "error" && a.Value.String() == "scrot missing" {
			found = true
		}
	}
	if !found {
		t.Error("LogValue should carry the span error")
	}
}

func TestTraceparent(t *testing.T) {
	tc := New()
	traceID, spanID, ok := ParseTraceparent(tc.Traceparent())
	if !ok || traceID != tc.TraceID || spanID != tc.SpanID {
		t.Errorf("ParseTraceparent(%q) = %q, %q, %v", tc.Traceparent(), traceID, spanID, ok)
	}

	for _, bad := range []string{
		"",
		"01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"00-00000000000000000000000000000000-00f067aa0ba902b7-01",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-zzf067aa0ba902b7-01",
		"00-4bf92f3577b34da6-00f067aa0ba902b7-01",
	} {
		if _, _, ok := ParseTraceparent(bad); ok {
			t.Errorf("ParseTraceparent(%q) should fail", bad)
		}
	}
}

func TestMiddlewareTraceparent(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	req.Header.Set(TraceparentKey, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" || seen.ParentSpanID != "00f067aa0ba902b7" {
		t.Errorf("handler saw %+v", seen)
	}
}

func TestLogger(t *testing.T) {
	ctx := WithContext(context.Background(), Continue("t", "p"))
	Logger(ctx).Info("test message")
	Logger(context.Background()).Info("no trace")
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	req.Header.Set(TraceIDKey, "trace-from-client")
	req.Header.Set(SpanIDKey, "client-span")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "trace-from-client" || seen.ParentSpanID != "client-span" {
		t.Errorf("handler saw %+v", seen)
	}
	if rec.Header().Get(TraceIDKey) != "trace-from-client" {
		t.Errorf("response trace header = %q", rec.Header().Get(TraceIDKey))
	}
}

func TestExtractFromJSON(t *testing.T) {
	tc, ok := ExtractFromJSON([]byte(`{"type":"locate","trace_id":"abc"}`))
	if !ok || tc.TraceID != "abc" {
		t.Errorf("ExtractFromJSON = %+v, %v", tc, ok)
	}
	if _, ok := ExtractFromJSON([]byte(`{"type":"locate"}`)); ok {
		t.Error("missing trace_id should report false")
	}
	if _, ok := ExtractFromJSON([]byte(`not json`)); ok {
		t.Error("invalid JSON should report false")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceIDKey, "grpc-trace", SpanIDKey, "grpc-span"))
	var seen Context
	handler := func(ctx context.Context, req any) (any, error) {
		seen, _ = FromContext(ctx)
		return "ok", nil
	}

	resp, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("interceptor = %v, %v", resp, err)
	}
	if seen.TraceID != "grpc-trace" || seen.ParentSpanID != "grpc-span" {
		t.Errorf("handler saw %+v", seen)
	}
}

func TestExtractMetadataWithout(t *testing.T) {
	tc, ok := FromContext(extractMetadata(context.Background()))
	if !ok || len(tc.TraceID) != 32 {
		t.Errorf("extractMetadata without metadata = %+v", tc)
	}
}
