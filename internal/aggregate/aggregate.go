// Package aggregate computes summaries over a ledger: category totals,
// cumulative balances per month or day, expense extremes and type totals.
//
// Functions here are pure reads of the ledger; they never log and never
// mutate their input.
package aggregate

import (
	"github.com/shopspring/decimal"

	"tracker/internal/core"
)

// Source is the read side of a ledger the aggregations need.
type Source interface {
	Transactions() []core.Transaction
	TransactionsInMonth(month, year int) []core.Transaction
	TransactionsOn(d core.Date) []core.Transaction
	Months() []core.YearMonth
}

// CategoryTotals sums the value of every transaction per category.
func CategoryTotals(src Source) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range src.Transactions() {
		totals[t.Category] = totals[t.Category].Add(t.Value)
	}
	return totals
}

// MonthlySummary walks the month's transactions in date order, keeping a
// running balance that starts at opening. An empty month yields a zero total
// and max, min and closing equal to opening.
func MonthlySummary(src Source, month, year int, opening decimal.Decimal) (core.Balance, error) {
	if err := (core.YearMonth{Year: year, Month: month}).Validate(); err != nil {
		return core.Balance{}, err
	}
	return cumulative(src.TransactionsInMonth(month, year), opening), nil
}

// DailySummary is the cumulative walk of a single day in insertion order.
// Each day starts from zero: balances do not carry over between days.
func DailySummary(src Source, d core.Date) core.Balance {
	return cumulative(src.TransactionsOn(d), decimal.Zero)
}

// MonthlyExpenseExtremes returns the total of the month's expenses together
// with the least negative (Max) and most negative (Min) expense. It fails
// with core.ErrEmptyResult when the month has no expenses. On ties the
// earliest transaction in date order wins.
func MonthlyExpenseExtremes(src Source, month, year int) (core.ExpenseExtremes, error) {
	if err := (core.YearMonth{Year: year, Month: month}).Validate(); err != nil {
		return core.ExpenseExtremes{}, err
	}
	var (
		out   core.ExpenseExtremes
		found bool
	)
	for _, t := range src.TransactionsInMonth(month, year) {
		if !t.IsExpense() {
			continue
		}
		out.Total = out.Total.Add(t.Value)
		if !found {
			out.Max, out.Min = t, t
			found = true
			continue
		}
		if t.Value.GreaterThan(out.Max.Value) {
			out.Max = t
		}
		if t.Value.LessThan(out.Min.Value) {
			out.Min = t
		}
	}
	if !found {
		return core.ExpenseExtremes{}, core.ErrEmptyResult
	}
	return out, nil
}

// TypeTotals splits every transaction into earnings, expenses and
// investments. A negative value booked under one of investments counts as an
// investment; expenses and investments are returned as magnitudes.
func TypeTotals(src Source, investments core.CategorySet) core.TypeTotals {
	var out core.TypeTotals
	for _, t := range src.Transactions() {
		switch core.Classify(t.Value, t.Category, investments) {
		case core.KindEarning:
			out.Earnings = out.Earnings.Add(t.Value)
		case core.KindInvestment:
			out.Investments = out.Investments.Sub(t.Value)
		default:
			out.Expenses = out.Expenses.Sub(t.Value)
		}
	}
	return out
}

func cumulative(txs []core.Transaction, opening decimal.Decimal) core.Balance {
	b := core.Balance{
		Opening: opening,
		Max:     opening,
		Min:     opening,
		Closing: opening,
	}
	running := opening
	for i, t := range txs {
		running = running.Add(t.Value)
		b.Total = b.Total.Add(t.Value)
		if i == 0 {
			b.Max, b.Min = running, running
		} else {
			b.Max = decimal.Max(b.Max, running)
			b.Min = decimal.Min(b.Min, running)
		}
	}
	b.Closing = running
	return b
}
