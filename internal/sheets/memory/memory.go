package memory

import (
	"context"
	"sync"

	"tracker/internal/core"
	"tracker/internal/sheets"
)

var _ sheets.DatasetWriter = (*Writer)(nil)

// Writer keeps the last datasets it was given. It backs the exporter when no
// spreadsheet is configured.
type Writer struct {
	mu     sync.Mutex
	last   core.Datasets
	writes int
	err    error
}

func New() *Writer {
	return &Writer{}
}

// FailWith makes subsequent writes return err. Passing nil clears it.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

func (w *Writer) WriteDatasets(ctx context.Context, ds core.Datasets) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.last = ds
	w.writes++
	return nil
}

// Last returns the most recent datasets and whether anything was written.
func (w *Writer) Last() (core.Datasets, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.writes > 0
}

// Writes returns how many times datasets were written.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
