package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	txs     []core.Transaction
	saves   int
	loadErr error
	saveErr error
	closed  bool
}

func (f *fakeStore) Load(context.Context) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.txs...), f.loadErr
}

func (f *fakeStore) Save(_ context.Context, txs []core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.txs = append([]core.Transaction(nil), txs...)
	return nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []core.Transaction
	err       error
	closeErr  error
}

func (p *fakePublisher) PublishTransactionRecorded(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, t)
	return p.err
}

func (p *fakePublisher) Close() error { return p.closeErr }

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func tx(concept string, value int64, date core.Date, category string) core.Transaction {
	return core.Transaction{
		Concept:  concept,
		Value:    decimal.NewFromInt(value),
		Date:     date,
		Category: category,
		Store:    true,
	}
}

func newService(t *testing.T, store storage.Store, opts ...Option) *LedgerService {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewLedgerService(store, opts...)
}

func TestLoadReplacesLedger(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		tx("salary", 1000, core.NewDate(2020, 1, 1), "income"),
		tx("rent", -500, core.NewDate(2020, 1, 1), "housing"),
	}}
	svc := newService(t, store)

	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, 2, svc.Snapshot().Len())
	assert.EqualValues(t, 1, svc.Revision())
	cat, ok := svc.Snapshot().CategoryFor("rent")
	assert.True(t, ok)
	assert.Equal(t, "housing", cat)

	store.loadErr = errors.New("disk gone")
	err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, svc.Snapshot().Len(), "failed load keeps the ledger")
}

func TestRecordPersistsAndPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := newService(t, store, WithPublisher(pub))
	ctx := context.Background()

	_, err := svc.Record(ctx, tx("rent", -500, core.NewDate(2020, 1, 1), "housing"))
	require.NoError(t, err)

	auto := tx("rent", -500, core.NewDate(2020, 2, 1), "")
	recorded, err := svc.Record(ctx, auto)
	require.NoError(t, err)
	assert.Equal(t, "housing", recorded.Category, "category filled from concept memory")

	require.Len(t, store.txs, 2)
	assert.Equal(t, "housing", store.txs[1].Category)
	require.Len(t, pub.published, 2)
	assert.EqualValues(t, 2, svc.Revision())
}

func TestRecordRejectsInvalidWithoutSideEffects(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := newService(t, store, WithPublisher(pub))

	_, err := svc.Record(context.Background(), core.Transaction{Value: decimal.NewFromInt(1), Date: core.NewDate(2020, 1, 1)})
	require.ErrorIs(t, err, core.ErrEmptyConcept)
	assert.Zero(t, store.saves)
	assert.Empty(t, pub.published)
	assert.Zero(t, svc.Snapshot().Len())
}

func TestRecordKeepsLedgerWhenStoreFails(t *testing.T) {
	store := &fakeStore{saveErr: &core.IOError{Op: "write", Path: "x", Err: errors.New("read-only")}}
	svc := newService(t, store)

	_, err := svc.Record(context.Background(), tx("rent", -500, core.NewDate(2020, 1, 1), "housing"))
	require.ErrorIs(t, err, core.ErrIO)
	assert.Zero(t, svc.Snapshot().Len())
	assert.Empty(t, svc.Concepts(), "memory untouched by a rejected record")
	assert.Zero(t, svc.Revision())
}

func TestRecordSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newService(t, &fakeStore{}, WithPublisher(pub))

	_, err := svc.Record(context.Background(), tx("rent", -500, core.NewDate(2020, 1, 1), "housing"))
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Snapshot().Len())
}

func TestRecordUsesAppenderFastPath(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	svc := newService(t, repo)
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	_, err = svc.Record(ctx, tx("salary", 1000, core.NewDate(2020, 1, 1), "income"))
	require.NoError(t, err)
	_, err = svc.Record(ctx, tx("rent", -500, core.NewDate(2020, 1, 2), "housing"))
	require.NoError(t, err)

	stats, ok, err := svc.StoreStats(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, stats.Transactions)
	assert.Equal(t, 2, stats.Concepts)
}

func TestStoreStatsWithoutInspector(t *testing.T) {
	svc := newService(t, &fakeStore{})
	_, ok, err := svc.StoreStats(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentRecord(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := svc.Record(ctx, tx("coffee", -2, core.NewDate(2020, 1, day%28+1), "food"))
			assert.NoError(t, err)
			_ = svc.TypeTotals()
			_ = svc.MonthlySeries()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, svc.Snapshot().Len())
	assert.Len(t, store.txs, 20)
	assertDec(t, "-40", svc.CategoryTotals()["food"])
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestSummariesAndCaching(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{txs: []core.Transaction{
		tx("salary", 1000, core.NewDate(2020, 1, 1), "income"),
		tx("rent", -500, core.NewDate(2020, 1, 1), "housing"),
		tx("etf", -200, core.NewDate(2020, 1, 15), "stocks"),
		tx("salary", 1000, core.NewDate(2020, 2, 1), "income"),
	}}
	svc := newService(t, store,
		WithInvestments(core.NewCategorySet("stocks")),
		WithClock(func() time.Time { return now }),
		WithCacheTTL(time.Hour))
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	totals := svc.TypeTotals()
	assertDec(t, "2000", totals.Earnings)
	assertDec(t, "500", totals.Expenses)
	assertDec(t, "200", totals.Investments)

	bal, err := svc.MonthlySummary(1, 2020, decimal.Zero)
	require.NoError(t, err)
	assertDec(t, "300", bal.Closing)

	ext, err := svc.MonthlyExpenseExtremes(2, 2020)
	require.ErrorIs(t, err, core.ErrEmptyResult)
	assert.True(t, ext.Total.IsZero())

	day := svc.DailySummary(core.NewDate(2020, 1, 1))
	assertDec(t, "500", day.Closing)

	series := svc.MonthlySeries()
	require.Len(t, series, 2)
	assertDec(t, "300", series[1].Open)

	ds := svc.Datasets()
	assert.Equal(t, now, ds.GeneratedAt)
	assert.Len(t, ds.Months, 2)

	slices := svc.ExpenseSlices(false, false)
	require.Len(t, slices, 1)
	assert.Equal(t, "housing", slices[0].Category)

	// a new record invalidates the cached series
	_, err = svc.Record(ctx, tx("rent", -500, core.NewDate(2020, 3, 1), "housing"))
	require.NoError(t, err)
	assert.Len(t, svc.MonthlySeries(), 3)
	assert.Len(t, svc.Datasets().Months, 3)

	r := svc.Range(core.NewDate(2020, 1, 1), core.NewDate(2020, 1, 31))
	assert.Equal(t, 3, r.Len())
}

func TestReplace(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store)
	ctx := context.Background()

	err := svc.Replace(ctx, []core.Transaction{
		tx("salary", 1000, core.NewDate(2020, 1, 1), "income"),
		{Concept: "", Value: decimal.NewFromInt(1), Date: core.NewDate(2020, 1, 1)},
	})
	require.ErrorIs(t, err, core.ErrEmptyConcept)
	assert.Zero(t, store.saves)

	require.NoError(t, svc.Replace(ctx, []core.Transaction{tx("salary", 1000, core.NewDate(2020, 1, 1), "income")}))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, svc.Snapshot().Len())
}

func TestClose(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{closeErr: errors.New("already closed")}
	svc := newService(t, store, WithPublisher(pub))

	err := svc.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher")
	assert.True(t, store.closed)

	assert.NoError(t, newService(t, &fakeStore{}).Close())
}
