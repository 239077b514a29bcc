package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/sheets"
)

// LedgerSource is the part of the ledger service the exporter needs.
type LedgerSource interface {
	Load(ctx context.Context) error
	Datasets() core.Datasets
}

// ExportWorker rebuilds the chart datasets from the store and pushes them to
// a spreadsheet. Runs are serialised so concurrent triggers never interleave
// tab writes.
type ExportWorker struct {
	ledger LedgerSource
	writer sheets.DatasetWriter

	mu      sync.Mutex
	exports int
	lastRun time.Time
}

func NewExportWorker(ledger LedgerSource, writer sheets.DatasetWriter) *ExportWorker {
	return &ExportWorker{
		ledger: ledger,
		writer: writer,
	}
}

// HandleMessage processes one transaction recorded event. The payload is only
// logged: the store is the source of truth.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction recorded message",
		"concept", msg.Concept,
		"date", msg.Date,
		"value", msg.Value)

	if err := w.ExportNow(ctx); err != nil {
		return fmt.Errorf("export after %q: %w", msg.Concept, err)
	}
	return nil
}

// ExportNow reloads the ledger and writes fresh datasets.
func (w *ExportWorker) ExportNow(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	if err := w.ledger.Load(ctx); err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}
	ds := w.ledger.Datasets()
	if err := w.writer.WriteDatasets(ctx, ds); err != nil {
		return fmt.Errorf("write datasets: %w", err)
	}

	w.exports++
	w.lastRun = time.Now()
	slog.InfoContext(ctx, "Datasets exported",
		"categories", len(ds.Categories),
		"months", len(ds.Months),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// RunPeriodic exports every interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ExportNow(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

// Stats reports how many exports succeeded and when the last one finished.
func (w *ExportWorker) Stats() (exports int, lastRun time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports, w.lastRun
}
