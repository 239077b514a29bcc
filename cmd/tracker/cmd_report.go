package main

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tracker/internal/core"
	"tracker/internal/services"
)

type balanceRow struct {
	Opening decimal.Decimal `json:"opening"`
	Total   decimal.Decimal `json:"total"`
	Max     decimal.Decimal `json:"max"`
	Min     decimal.Decimal `json:"min"`
	Closing decimal.Decimal `json:"closing"`
}

func toBalanceRow(b core.Balance) balanceRow {
	return balanceRow{Opening: b.Opening, Total: b.Total, Max: b.Max, Min: b.Min, Closing: b.Closing}
}

func printBalance(w io.Writer, b balanceRow) {
	fmt.Fprintln(w, "OPENING\tTOTAL\tMAX\tMIN\tCLOSING")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		core.FormatEuros(b.Opening), core.FormatEuros(b.Total),
		core.FormatEuros(b.Max), core.FormatEuros(b.Min), core.FormatEuros(b.Closing))
}

type categoryRow struct {
	Category  string          `json:"category"`
	Kind      core.Kind       `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	Magnitude decimal.Decimal `json:"magnitude"`
}

func (a *app) categoriesCmd() *cobra.Command {
	var (
		rng             dateRangeFlags
		pie             bool
		withInvestments bool
		withEarnings    bool
	)
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Sum transaction values per category",
		Long: `Sum transaction values per category, grouped as earnings, expenses and
investments. With --pie only expense categories are listed, largest first;
--investments and --earnings add those groups back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				var (
					bars []core.CategoryBar
					err  error
				)
				if pie {
					bars = svc.ExpenseSlices(withInvestments, withEarnings)
				} else if bars, err = categoryBars(svc, rng); err != nil {
					return err
				}

				rows := make([]categoryRow, 0, len(bars))
				for _, b := range bars {
					rows = append(rows, categoryRow{Category: b.Category, Kind: b.Kind, Value: b.Value, Magnitude: b.Magnitude})
				}
				return a.render(cmd, rows, func(w io.Writer) {
					fmt.Fprintln(w, "CATEGORY\tKIND\tVALUE")
					for _, r := range rows {
						fmt.Fprintf(w, "%s\t%s\t%s\n", r.Category, r.Kind, core.FormatEuros(r.Value))
					}
				})
			})
		},
	}
	rng.register(cmd)
	cmd.Flags().BoolVar(&pie, "pie", false, "Expense slices for a pie chart")
	cmd.Flags().BoolVar(&withInvestments, "investments", false, "With --pie, include investment categories")
	cmd.Flags().BoolVar(&withEarnings, "earnings", false, "With --pie, include earning categories")
	cmd.MarkFlagsMutuallyExclusive("pie", "from")
	cmd.MarkFlagsMutuallyExclusive("pie", "to")
	return cmd
}

func (a *app) monthCmd() *cobra.Command {
	var opening string
	cmd := &cobra.Command{
		Use:   "month <year> <month>",
		Short: "Cumulative balance over one month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonthArgs(args)
			if err != nil {
				return err
			}
			open, err := core.ParseAmount(opening)
			if err != nil {
				return fmt.Errorf("--opening %q: %w", opening, err)
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				b, err := svc.MonthlySummary(month, year, open)
				if err != nil {
					return err
				}
				row := toBalanceRow(b)
				return a.render(cmd, row, func(w io.Writer) { printBalance(w, row) })
			})
		},
	}
	cmd.Flags().StringVar(&opening, "opening", "0", "Balance carried into the month")
	return cmd
}

func (a *app) dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day <date>",
		Short: "Balance walk over one day, starting from zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("date %q: %w", args[0], err)
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				row := toBalanceRow(svc.DailySummary(d))
				txs := toRows(svc.Snapshot().TransactionsOn(d))
				out := struct {
					Summary      balanceRow `json:"summary"`
					Transactions []txRow    `json:"transactions"`
				}{row, txs}
				return a.render(cmd, out, func(w io.Writer) {
					printBalance(w, row)
					fmt.Fprintln(w)
					printTransactions(w, txs)
				})
			})
		},
	}
}

func (a *app) extremesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extremes <year> <month>",
		Short: "Total, largest and smallest expense of a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonthArgs(args)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				ex, err := svc.MonthlyExpenseExtremes(month, year)
				if err != nil {
					return fmt.Errorf("expenses of %s: %w", core.YearMonth{Year: year, Month: month}, err)
				}
				rows := toRows([]core.Transaction{ex.Max, ex.Min})
				out := struct {
					Total decimal.Decimal `json:"total"`
					Max   txRow           `json:"max"`
					Min   txRow           `json:"min"`
				}{ex.Total, rows[0], rows[1]}
				return a.render(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "TOTAL\t%s\n", core.FormatEuros(ex.Total))
					fmt.Fprintf(w, "MAX\t%s\t%s\t%s\n", rows[0].Date, rows[0].Concept, core.FormatEuros(rows[0].Value))
					fmt.Fprintf(w, "MIN\t%s\t%s\t%s\n", rows[1].Date, rows[1].Concept, core.FormatEuros(rows[1].Value))
				})
			})
		},
	}
}

func (a *app) typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Totals of earnings, expenses and investments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				t := svc.TypeTotals()
				out := map[core.Kind]decimal.Decimal{
					core.KindEarning:    t.Earnings,
					core.KindExpense:    t.Expenses,
					core.KindInvestment: t.Investments,
				}
				return a.render(cmd, out, func(w io.Writer) {
					fmt.Fprintln(w, "KIND\tTOTAL")
					fmt.Fprintf(w, "%s\t%s\n", core.KindEarning, core.FormatEuros(t.Earnings))
					fmt.Fprintf(w, "%s\t%s\n", core.KindExpense, core.FormatEuros(t.Expenses))
					fmt.Fprintf(w, "%s\t%s\n", core.KindInvestment, core.FormatEuros(t.Investments))
				})
			})
		},
	}
}

type monthRow struct {
	Month string          `json:"month"`
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Max   decimal.Decimal `json:"max"`
	Min   decimal.Decimal `json:"min"`
	Total decimal.Decimal `json:"total"`
}

func (a *app) seriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "Monthly candlesticks, each month opening at the previous close",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				series := svc.MonthlySeries()
				rows := make([]monthRow, 0, len(series))
				for _, p := range series {
					rows = append(rows, monthRow{
						Month: core.YearMonth{Year: p.Year, Month: p.Month}.String(),
						Open:  p.Open, Close: p.Close, Max: p.Max, Min: p.Min, Total: p.Total,
					})
				}
				return a.render(cmd, rows, func(w io.Writer) {
					fmt.Fprintln(w, "MONTH\tOPEN\tCLOSE\tMAX\tMIN\tTOTAL")
					for _, r := range rows {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Month,
							core.FormatEuros(r.Open), core.FormatEuros(r.Close),
							core.FormatEuros(r.Max), core.FormatEuros(r.Min), core.FormatEuros(r.Total))
					}
				})
			})
		},
	}
}
