package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tracker/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})
	m := NewMiddleware(func(*http.Request) string { return "10.1.2.3" }, log.NewStructuredLogger(logger))

	var seen string
	h := log.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNotFound)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/types", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q != context id %q", got, seen)
	}

	out := buf.String()
	if strings.Count(out, "request_id="+seen) != 2 {
		t.Errorf("handler log and access log should both carry the id:\n%s", out)
	}
	for _, want := range []string{"status_code=404", "level=WARN", "client_ip=10.1.2.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %q:\n%s", want, out)
		}
	}

	if got := m.GetMetrics(); got.TotalRequests != 1 {
		t.Errorf("total requests = %d", got.TotalRequests)
	}
}

func TestMiddlewareHonoursValidIncomingID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "abc-123" {
		t.Errorf("request id = %q, want abc-123", seen)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "bad id with spaces")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == "bad id with spaces" {
		t.Error("invalid incoming id was accepted")
	}
}

func TestAverageResponseTime(t *testing.T) {
	if (Metrics{}).AverageResponseTime() != 0 {
		t.Error("empty metrics should average to zero")
	}
	m := Metrics{TotalRequests: 2, TotalDurationMicros: 3000}
	if got := m.AverageResponseTime().Microseconds(); got != 1500 {
		t.Errorf("average = %dµs, want 1500", got)
	}
}
