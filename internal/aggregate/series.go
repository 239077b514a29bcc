package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tracker/internal/core"
)

// MonthlySeries returns one candlestick per month holding transactions,
// oldest first. Each month opens at the previous month's closing balance;
// the first month opens at zero.
func MonthlySeries(src Source) []core.MonthPoint {
	months := src.Months()
	out := make([]core.MonthPoint, 0, len(months))
	open := decimal.Zero
	for _, ym := range months {
		b := cumulative(src.TransactionsInMonth(ym.Month, ym.Year), open)
		out = append(out, core.MonthPoint{
			Year:  ym.Year,
			Month: ym.Month,
			Total: b.Total,
			Max:   b.Max,
			Min:   b.Min,
			Open:  open,
			Close: b.Closing,
		})
		open = b.Closing
	}
	return out
}

// CategoryBars classifies the category totals and orders them for a bar
// chart: by value ascending, then grouped as earnings, expenses and
// investments.
func CategoryBars(src Source, investments core.CategorySet) []core.CategoryBar {
	totals := CategoryTotals(src)
	bars := make([]core.CategoryBar, 0, len(totals))
	for category, value := range totals {
		bars = append(bars, core.CategoryBar{
			Category:  category,
			Value:     value,
			Magnitude: value.Abs(),
			Kind:      core.Classify(value, category, investments),
		})
	}
	sort.Slice(bars, func(i, j int) bool {
		if c := bars[i].Value.Cmp(bars[j].Value); c != 0 {
			return c < 0
		}
		return bars[i].Category < bars[j].Category
	})
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Kind.Rank() < bars[j].Kind.Rank()
	})
	return bars
}

// ExpenseSlices prepares category totals for a pie chart. By default only
// plain expense categories are kept; investments and earnings can be
// included on request. Slices carry magnitudes, largest first.
func ExpenseSlices(src Source, investments core.CategorySet, withInvestments, withEarnings bool) []core.CategoryBar {
	var out []core.CategoryBar
	for _, bar := range CategoryBars(src, investments) {
		if !withInvestments && investments.Contains(bar.Category) {
			continue
		}
		if !withEarnings && !bar.Value.IsNegative() {
			continue
		}
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Magnitude.GreaterThan(out[j].Magnitude)
	})
	return out
}

// BuildDatasets computes every chart table at once.
func BuildDatasets(src Source, investments core.CategorySet, now time.Time) core.Datasets {
	return core.Datasets{
		Categories:  CategoryBars(src, investments),
		Months:      MonthlySeries(src),
		Types:       TypeTotals(src, investments),
		GeneratedAt: now,
	}
}
