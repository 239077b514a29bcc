package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/sheets/memory"
	"tracker/internal/storage"
)

func seededService(t *testing.T) (*services.LedgerService, *storage.CSVStore) {
	t.Helper()
	store := storage.NewCSVStore(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, store.Save(context.Background(), []core.Transaction{
		{Concept: "salary", Value: decimal.NewFromInt(1000), Date: core.NewDate(2020, 1, 1), Category: "income", Store: true},
		{Concept: "rent", Value: decimal.NewFromInt(-500), Date: core.NewDate(2020, 1, 1), Category: "housing", Store: true},
	}))
	return services.NewLedgerService(store), store
}

func TestHandleMessageReloadsAndWrites(t *testing.T) {
	svc, store := seededService(t)
	writer := memory.New()
	w := NewExportWorker(svc, writer)
	ctx := context.Background()

	// another process appends to the store
	txs, err := store.Load(ctx)
	require.NoError(t, err)
	extra := core.Transaction{Concept: "rent", Value: decimal.NewFromInt(-500), Date: core.NewDate(2020, 2, 1), Category: "housing", Store: true}
	require.NoError(t, store.Save(ctx, append(txs, extra)))

	msg := amqp.NewTransactionRecordedMessage(extra)
	require.NoError(t, w.HandleMessage(ctx, msg))

	ds, ok := writer.Last()
	require.True(t, ok)
	require.Len(t, ds.Months, 2, "reloaded ledger includes the new month")
	assert.True(t, ds.Types.Expenses.Equal(decimal.NewFromInt(1000)))

	n, last := w.Stats()
	assert.Equal(t, 1, n)
	assert.False(t, last.IsZero())
}

type failingSource struct{}

func (failingSource) Load(context.Context) error { return errors.New("store unavailable") }
func (failingSource) Datasets() core.Datasets   { return core.Datasets{} }

func TestExportNowErrors(t *testing.T) {
	ctx := context.Background()

	writer := memory.New()
	err := NewExportWorker(failingSource{}, writer).ExportNow(ctx)
	require.ErrorContains(t, err, "reload ledger")
	assert.Zero(t, writer.Writes())

	svc, _ := seededService(t)
	writer.FailWith(errors.New("quota"))
	w := NewExportWorker(svc, writer)
	err = w.HandleMessage(ctx, &amqp.TransactionRecordedMessage{Concept: "rent"})
	require.ErrorContains(t, err, "write datasets")
	n, _ := w.Stats()
	assert.Zero(t, n)
}

func TestRunPeriodic(t *testing.T) {
	svc, _ := seededService(t)
	writer := memory.New()
	w := NewExportWorker(svc, writer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunPeriodic(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return writer.Writes() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop on cancel")
	}

	// disabled interval returns at once
	w.RunPeriodic(context.Background(), 0)
}
