package sheets

import (
	"context"

	"tracker/internal/core"
)

// Ports for outbound adapters.
type (
	// DatasetWriter publishes the chart datasets to an external spreadsheet.
	// Each call replaces what the previous call wrote.
	DatasetWriter interface {
		WriteDatasets(ctx context.Context, ds core.Datasets) error
	}
)
