package google

import (
	"time"

	"github.com/shopspring/decimal"

	"tracker/internal/core"
)

// Row builders turn datasets into the value matrices written to each tab.
// Amounts are written as numbers so the spreadsheet locale does not matter.

var (
	categoryHeader = []interface{}{"Category", "Value", "Magnitude", "Kind"}
	monthHeader    = []interface{}{"Month", "Open", "Close", "Max", "Min", "Total"}
	typeHeader     = []interface{}{"Type", "Amount"}
)

func CategoryRows(bars []core.CategoryBar) [][]interface{} {
	rows := make([][]interface{}, 0, len(bars)+1)
	rows = append(rows, categoryHeader)
	for _, b := range bars {
		rows = append(rows, []interface{}{b.Category, number(b.Value), number(b.Magnitude), string(b.Kind)})
	}
	return rows
}

func MonthRows(points []core.MonthPoint) [][]interface{} {
	rows := make([][]interface{}, 0, len(points)+1)
	rows = append(rows, monthHeader)
	for _, p := range points {
		label := core.YearMonth{Year: p.Year, Month: p.Month}.String()
		rows = append(rows, []interface{}{label, number(p.Open), number(p.Close), number(p.Max), number(p.Min), number(p.Total)})
	}
	return rows
}

// TypeRows also records when the datasets were generated.
func TypeRows(t core.TypeTotals, generated time.Time) [][]interface{} {
	rows := [][]interface{}{
		typeHeader,
		{"Earnings", number(t.Earnings)},
		{"Expenses", number(t.Expenses)},
		{"Investments", number(t.Investments)},
	}
	if !generated.IsZero() {
		rows = append(rows, []interface{}{"Generated", generated.UTC().Format(time.RFC3339)})
	}
	return rows
}

func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
