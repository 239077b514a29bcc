// Package ledger holds the ordered transaction store and its concept memory.
//
// A Ledger keeps transactions in insertion order; query methods impose date
// order on demand. It does no locking: callers sharing a Ledger across
// goroutines must synchronise access themselves.
package ledger

import (
	"fmt"
	"sort"

	"tracker/internal/core"
)

type Ledger struct {
	txs    []core.Transaction
	memory ConceptMemory
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{memory: make(ConceptMemory)}
}

// FromTransactions builds a ledger over a copy of txs, rebuilding the
// concept memory from them.
func FromTransactions(txs []core.Transaction) *Ledger {
	l := New()
	l.Reset(txs)
	return l
}

// Reset replaces the whole content of the ledger. Concept memory is rebuilt
// from scratch in row order.
func (l *Ledger) Reset(txs []core.Transaction) {
	l.txs = nil
	for _, t := range txs {
		l.txs = append(l.txs, t.Normalize())
	}
	l.memory = BuildConceptMemory(l.txs)
}

// Append trims and validates t and adds it at the end of the ledger. An
// empty category is filled from the concept memory when the concept is
// known. The stored transaction is returned.
func (l *Ledger) Append(t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if t.Category == "" {
		if c, ok := l.memory.Lookup(t.Concept); ok {
			t.Category = c
		}
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	l.txs = append(l.txs, t)
	l.memory.observe(t)
	return t, nil
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	return len(l.txs)
}

// Transactions returns a copy of all transactions in insertion order.
func (l *Ledger) Transactions() []core.Transaction {
	return append([]core.Transaction(nil), l.txs...)
}

// Concepts returns a copy of the concept memory.
func (l *Ledger) Concepts() ConceptMemory {
	return l.memory.Clone()
}

// CategoryFor returns the remembered category of concept.
func (l *Ledger) CategoryFor(concept string) (string, bool) {
	return l.memory.Lookup(concept)
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		txs:    l.Transactions(),
		memory: l.memory.Clone(),
	}
}

// FilterByDateRange returns a new ledger with the transactions dated in
// [start, end], in their original order. The sub-ledger rebuilds its own
// concept memory.
func (l *Ledger) FilterByDateRange(start, end core.Date) *Ledger {
	return FromTransactions(l.selectWhere(func(t core.Transaction) bool {
		return !t.Date.Before(start.Time) && !t.Date.After(end.Time)
	}))
}

// TransactionsOn returns the transactions dated exactly d.
func (l *Ledger) TransactionsOn(d core.Date) []core.Transaction {
	return sortByDate(l.selectWhere(func(t core.Transaction) bool {
		return t.Date.Equal(d)
	}))
}

// TransactionsInMonth returns the transactions of the given month ordered by
// date; same-day transactions keep insertion order.
func (l *Ledger) TransactionsInMonth(month, year int) []core.Transaction {
	ym := core.YearMonth{Year: year, Month: month}
	return sortByDate(l.selectWhere(func(t core.Transaction) bool {
		return ym.Contains(t.Date)
	}))
}

// Months returns the distinct months that hold at least one transaction,
// oldest first.
func (l *Ledger) Months() []core.YearMonth {
	seen := make(map[core.YearMonth]struct{})
	var out []core.YearMonth
	for _, t := range l.txs {
		ym := t.Date.YearMonth()
		if _, ok := seen[ym]; ok {
			continue
		}
		seen[ym] = struct{}{}
		out = append(out, ym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Span returns the earliest and latest transaction dates. ok is false for
// an empty ledger.
func (l *Ledger) Span() (first, last core.Date, ok bool) {
	if len(l.txs) == 0 {
		return core.Date{}, core.Date{}, false
	}
	first, last = l.txs[0].Date, l.txs[0].Date
	for _, t := range l.txs[1:] {
		if t.Date.Before(first.Time) {
			first = t.Date
		}
		if t.Date.After(last.Time) {
			last = t.Date
		}
	}
	return first, last, true
}

func (l *Ledger) selectWhere(keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, t := range l.txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortByDate(txs []core.Transaction) []core.Transaction {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date.Time)
	})
	return txs
}
