package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tracker/internal/config"
	"tracker/internal/core"
	"tracker/internal/ledger"
	"tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
)

// Ledger is what the API needs from the ledger service.
type Ledger interface {
	Record(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Revision() uint64
	Investments() core.CategorySet
	Snapshot() *ledger.Ledger
	Range(start, end core.Date) *ledger.Ledger
	Concepts() ledger.ConceptMemory
	CategoryBars() []core.CategoryBar
	ExpenseSlices(withInvestments, withEarnings bool) []core.CategoryBar
	MonthlySeries() []core.MonthPoint
	MonthlySummary(month, year int, opening decimal.Decimal) (core.Balance, error)
	MonthlyExpenseExtremes(month, year int) (core.ExpenseExtremes, error)
	DailySummary(d core.Date) core.Balance
	TypeTotals() core.TypeTotals
}

// Server serves the chart data API over a Ledger.
type Server struct {
	http.Server
	ledger   Ledger
	palette  config.Palette
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  *metricsRegistry

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, l Ledger, palette config.Palette, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:   l,
		palette:  palette,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, log.NewStructuredLogger(logger))
	s.metrics = s.newMetricsRegistry()

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
	})

	mux := http.NewServeMux()
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, s.metrics.instrument(pattern, h))
	}
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.handler())
	route("GET /api/stats", http.HandlerFunc(s.handleStats))

	route("GET /api/transactions", http.HandlerFunc(s.handleListTransactions))
	route("POST /api/transactions", limited(http.HandlerFunc(s.handleRecordTransaction)))
	route("GET /api/concepts", http.HandlerFunc(s.handleConcepts))
	route("GET /api/categories", http.HandlerFunc(s.handleCategories))
	route("GET /api/categories/pie", http.HandlerFunc(s.handleCategoryPie))
	route("GET /api/months", http.HandlerFunc(s.handleMonths))
	route("GET /api/months/{year}/{month}", http.HandlerFunc(s.handleMonthSummary))
	route("GET /api/months/{year}/{month}/expenses", http.HandlerFunc(s.handleMonthExpenses))
	route("GET /api/days/{date}", http.HandlerFunc(s.handleDay))
	route("GET /api/types", http.HandlerFunc(s.handleTypes))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = mux
	h = headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter. Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the ledger has been loaded at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ledger.Revision() == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statsResponse struct {
	Revision           uint64 `json:"revision"`
	Transactions       int    `json:"transactions"`
	Requests           int64  `json:"requests"`
	AverageResponseMs  int64  `json:"average_response_ms"`
	RateLimitHits      int64  `json:"rate_limit_hits"`
	RateLimitClients   int64  `json:"rate_limit_clients"`
	SuspiciousRequests int64  `json:"suspicious_requests"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	writeJSON(w, http.StatusOK, statsResponse{
		Revision:           s.ledger.Revision(),
		Transactions:       s.ledger.Snapshot().Len(),
		Requests:           tm.TotalRequests,
		AverageResponseMs:  tm.AverageResponseTime().Milliseconds(),
		RateLimitHits:      rm.TotalHits,
		RateLimitClients:   rm.ClientCount,
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
	})
}
