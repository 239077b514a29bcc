// Package backend opens the ledger store named by configuration and wires
// the ledger service around it.
package backend

import (
	"context"

	"tracker/internal/services"
)

// Kind names a ledger store implementation.
type Kind string

const (
	CSV    Kind = "csv"
	SQLite Kind = "sqlite"
)

// Kinds lists the accepted store kinds.
var Kinds = []Kind{CSV, SQLite}

func (k Kind) String() string { return string(k) }

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Result is a loaded ledger service plus the function that releases it.
type Result struct {
	Ledger  *services.LedgerService
	Cleanup func() error
}

// Factory builds a ready ledger service from a Config.
type Factory interface {
	CreateBackend(ctx context.Context, cfg Config) (*Result, error)
}
