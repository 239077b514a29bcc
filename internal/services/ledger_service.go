package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tracker/internal/aggregate"
	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/ledger"
	"tracker/internal/log"
	"tracker/internal/storage"
)

// Publisher announces recorded transactions to other processes.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, t core.Transaction) error
	Close() error
}

const cacheSize = 64

// LedgerService guards one ledger for concurrent callers, keeps it in sync
// with a store and notifies a publisher of every recorded transaction.
type LedgerService struct {
	mu       sync.RWMutex
	ledger   *ledger.Ledger
	revision uint64

	store       storage.Store
	publisher   Publisher
	investments core.CategorySet
	now         func() time.Time
	logger      *log.Logger

	series   *cache.LRUCache[[]core.MonthPoint]
	bars     *cache.LRUCache[[]core.CategoryBar]
	datasets *cache.LRUCache[core.Datasets]
}

type Option func(*LedgerService)

// WithPublisher enables event publishing. A nil publisher is ignored.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithInvestments(set core.CategorySet) Option {
	return func(s *LedgerService) { s.investments = set }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithCacheTTL bounds how long derived tables are kept.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *LedgerService) {
		s.series = cache.NewLRUCache[[]core.MonthPoint](cacheSize, ttl)
		s.bars = cache.NewLRUCache[[]core.CategoryBar](cacheSize, ttl)
		s.datasets = cache.NewLRUCache[core.Datasets](cacheSize, ttl)
	}
}

func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		ledger:      ledger.New(),
		store:       store,
		investments: core.NewCategorySet(),
		now:         time.Now,
		logger:      log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
	}
	WithCacheTTL(0)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCaches hands the derived-table caches to m for periodic cleanup.
func (s *LedgerService) RegisterCaches(m *cache.Manager) {
	m.Register(s.series)
	m.Register(s.bars)
	m.Register(s.datasets)
}

// Load replaces the in-memory ledger with the content of the store.
func (s *LedgerService) Load(ctx context.Context) error {
	txs, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	s.mu.Lock()
	s.ledger.Reset(txs)
	s.revision++
	rev := s.revision
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldCount, len(txs), "revision", rev)
	return nil
}

// Record appends t, persists it and publishes an event. The ledger only
// changes when the store accepted the transaction. A failed publish is
// logged and does not fail the call.
func (s *LedgerService) Record(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	next := s.ledger.Clone()
	recorded, err := next.Append(t)
	if err != nil {
		s.mu.Unlock()
		return core.Transaction{}, err
	}
	if err := s.persist(ctx, next, recorded); err != nil {
		s.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}
	s.ledger = next
	s.revision++
	rev := s.revision
	s.mu.Unlock()

	log.NewStructuredLogger(s.logger).LogTransactionRecorded(ctx, rev, recorded)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionRecorded(ctx, recorded); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish transaction recorded event",
				log.FieldError, err, log.FieldConcept, recorded.Concept)
		}
	}
	return recorded, nil
}

func (s *LedgerService) persist(ctx context.Context, next *ledger.Ledger, t core.Transaction) error {
	if a, ok := s.store.(storage.Appender); ok {
		return a.Append(ctx, t)
	}
	return s.store.Save(ctx, next.Transactions())
}

// Replace swaps the whole ledger for txs and saves it. Every transaction is
// validated first; nothing changes on error.
func (s *LedgerService) Replace(ctx context.Context, txs []core.Transaction) error {
	next := ledger.New()
	for i, t := range txs {
		if _, err := next.Append(t); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ctx, next.Transactions()); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	s.ledger = next
	s.revision++
	return nil
}

// Revision increases every time the ledger content changes.
func (s *LedgerService) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *LedgerService) Investments() core.CategorySet {
	return s.investments
}

// Snapshot returns an independent copy of the ledger.
func (s *LedgerService) Snapshot() *ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone()
}

// Range returns the transactions dated within [start, end] as a new ledger.
func (s *LedgerService) Range(start, end core.Date) *ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.FilterByDateRange(start, end)
}

func (s *LedgerService) Concepts() ledger.ConceptMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Concepts()
}

func (s *LedgerService) CategoryTotals() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregate.CategoryTotals(s.ledger)
}

func (s *LedgerService) MonthlySummary(month, year int, opening decimal.Decimal) (core.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregate.MonthlySummary(s.ledger, month, year, opening)
}

func (s *LedgerService) MonthlyExpenseExtremes(month, year int) (core.ExpenseExtremes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregate.MonthlyExpenseExtremes(s.ledger, month, year)
}

func (s *LedgerService) DailySummary(d core.Date) core.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregate.DailySummary(s.ledger, d)
}

func (s *LedgerService) TypeTotals() core.TypeTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregate.TypeTotals(s.ledger, s.investments)
}

// MonthlySeries returns the chained monthly candlesticks, cached per revision.
func (s *LedgerService) MonthlySeries() []core.MonthPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := cache.GetOrCompute[[]core.MonthPoint](s.series, cache.Key("series", s.revision), func() ([]core.MonthPoint, error) {
		return aggregate.MonthlySeries(s.ledger), nil
	})
	return v
}

// CategoryBars returns the classified category totals, cached per revision.
func (s *LedgerService) CategoryBars() []core.CategoryBar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := cache.GetOrCompute[[]core.CategoryBar](s.bars, cache.Key("bars", s.revision), func() ([]core.CategoryBar, error) {
		return aggregate.CategoryBars(s.ledger, s.investments), nil
	})
	return v
}

func (s *LedgerService) ExpenseSlices(withInvestments, withEarnings bool) []core.CategoryBar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := cache.GetOrCompute[[]core.CategoryBar](s.bars, cache.Key("slices", s.revision, withInvestments, withEarnings), func() ([]core.CategoryBar, error) {
		return aggregate.ExpenseSlices(s.ledger, s.investments, withInvestments, withEarnings), nil
	})
	return v
}

// Datasets bundles every chart table, cached per revision.
func (s *LedgerService) Datasets() core.Datasets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := cache.GetOrCompute[core.Datasets](s.datasets, cache.Key("datasets", s.revision), func() (core.Datasets, error) {
		return aggregate.BuildDatasets(s.ledger, s.investments, s.now()), nil
	})
	return v
}

// StoreStats asks the store to describe its content. ok is false when the
// store cannot do so without a full load.
func (s *LedgerService) StoreStats(ctx context.Context) (stats storage.Stats, ok bool, err error) {
	inspector, ok := s.store.(storage.Inspector)
	if !ok {
		return storage.Stats{}, false, nil
	}
	stats, err = inspector.Stats(ctx)
	if err != nil {
		return storage.Stats{}, true, fmt.Errorf("store stats: %w", err)
	}
	return stats, true, nil
}

// Close releases the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
