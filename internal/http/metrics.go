package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRegistry holds the Prometheus collectors of one Server. Each server
// owns its registry so tests can build several servers in one process.
type metricsRegistry struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	recorded prometheus.Counter
}

func (s *Server) newMetricsRegistry() *metricsRegistry {
	m := &metricsRegistry{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_http_requests_total",
				Help: "HTTP requests served, by route and status code",
			},
			[]string{"route", "code"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"route"},
		),

		recorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_transactions_recorded_total",
				Help: "Transactions recorded through the API",
			},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.recorded,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tracker_ledger_revision",
				Help: "Number of loads and appends applied to the ledger",
			},
			func() float64 { return float64(s.ledger.Revision()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tracker_ledger_transactions",
				Help: "Transactions currently held by the ledger",
			},
			func() float64 { return float64(s.ledger.Snapshot().Len()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tracker_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			func() float64 { return float64(s.limiter.GetMetrics().TotalHits) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tracker_suspicious_requests_total",
				Help: "Requests matching a known probe pattern",
			},
			func() float64 { return float64(s.detector.GetMetrics().SuspiciousRequests) },
		),
	)
	return m
}

// instrument records count and latency of every request handled by h under
// the route label.
func (m *metricsRegistry) instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
