package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues the caller's trace, taken from a W3C traceparent
// header or the x-trace-id/x-span-id pair, and echoes the trace ID in the
// response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := fromHeaders(r.Header)
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

func fromHeaders(h http.Header) Context {
	if traceID, spanID, ok := ParseTraceparent(h.Get(TraceparentKey)); ok {
		return Continue(traceID, spanID)
	}
	return Continue(h.Get(TraceIDKey), h.Get(SpanIDKey))
}

// ExtractFromJSON reads a trace_id field from a WebSocket message and reports
// whether one was present.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return Continue(msg.TraceID, ""), true
}
