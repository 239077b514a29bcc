package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction (or a category total) for reporting.
type Kind string

const (
	KindEarning    Kind = "earning"
	KindExpense    Kind = "expense"
	KindInvestment Kind = "investment"
)

// Rank orders kinds for charts: earnings, then expenses, then investments.
func (k Kind) Rank() int {
	switch k {
	case KindEarning:
		return 0
	case KindExpense:
		return 1
	default:
		return 2
	}
}

// CategorySet is a set of category names, e.g. the investment categories.
type CategorySet map[string]struct{}

func NewCategorySet(names ...string) CategorySet {
	set := make(CategorySet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

func (s CategorySet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Classify returns the kind of a signed value booked under category.
// Zero counts as an expense of magnitude zero.
func Classify(value decimal.Decimal, category string, investments CategorySet) Kind {
	switch {
	case value.IsPositive():
		return KindEarning
	case value.IsNegative() && investments.Contains(category):
		return KindInvestment
	default:
		return KindExpense
	}
}

// Balance is the result of a cumulative-balance walk over a window.
type Balance struct {
	Opening decimal.Decimal
	Total   decimal.Decimal
	Max     decimal.Decimal
	Min     decimal.Decimal
	Closing decimal.Decimal
}

// ExpenseExtremes summarises the expenses of a month.
// Max is the least negative expense, Min the most negative one.
type ExpenseExtremes struct {
	Total decimal.Decimal
	Max   Transaction
	Min   Transaction
}

// TypeTotals splits a ledger into earnings, expenses and investments.
// Expenses and Investments are reported as non-negative magnitudes.
type TypeTotals struct {
	Earnings    decimal.Decimal
	Expenses    decimal.Decimal
	Investments decimal.Decimal
}

// MonthPoint is one candlestick of the monthly series.
type MonthPoint struct {
	Year  int
	Month int
	Total decimal.Decimal
	Max   decimal.Decimal
	Min   decimal.Decimal
	Open  decimal.Decimal
	Close decimal.Decimal
}

// CategoryBar is one category total prepared for a bar or pie chart.
type CategoryBar struct {
	Category  string
	Value     decimal.Decimal
	Magnitude decimal.Decimal
	Kind      Kind
}

// Datasets bundles every table the charting layer consumes.
type Datasets struct {
	Categories  []CategoryBar
	Months      []MonthPoint
	Types       TypeTotals
	GeneratedAt time.Time
}
