package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tracker/internal/aggregate"
	"tracker/internal/core"
	"tracker/internal/ledger"
	"tracker/internal/services"
	"tracker/internal/storage"
)

type txRow struct {
	Concept     string          `json:"concept"`
	Value       decimal.Decimal `json:"value"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Store       bool            `json:"store"`
}

func toRows(txs []core.Transaction) []txRow {
	rows := make([]txRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, txRow{
			Concept:     t.Concept,
			Value:       t.Value,
			Date:        t.Date.String(),
			Category:    t.Category,
			Subcategory: t.Subcategory,
			Store:       t.Store,
		})
	}
	return rows
}

func printTransactions(w io.Writer, rows []txRow) {
	fmt.Fprintln(w, "DATE\tCONCEPT\tVALUE\tCATEGORY\tSUBCATEGORY\tSTORE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			r.Date, r.Concept, core.FormatEuros(r.Value), r.Category, r.Subcategory, r.Store)
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		category    string
		subcategory string
		noStore     bool
	)
	cmd := &cobra.Command{
		Use:   "add [flags] <concept> <value> <date>",
		Short: "Record a transaction",
		Long: `Record a transaction at the end of the ledger. Negative values are
expenses. When --category is omitted and the concept has been stored before,
its remembered category is used.

Flags go before the concept; everything after it is positional, so
"tracker add --category housing rent -500 2024-03-01" records an expense.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := core.ParseAmount(args[1])
			if err != nil {
				return fmt.Errorf("value %q: %w", args[1], err)
			}
			date, err := core.ParseDate(args[2])
			if err != nil {
				return fmt.Errorf("date %q: %w", args[2], err)
			}
			t := core.Transaction{
				Concept:     args[0],
				Value:       value,
				Date:        date,
				Category:    category,
				Subcategory: subcategory,
				Store:       !noStore,
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				recorded, err := svc.Record(ctx, t)
				if err != nil {
					return err
				}
				rows := toRows([]core.Transaction{recorded})
				return a.render(cmd, rows[0], func(w io.Writer) { printTransactions(w, rows) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category (defaults to the remembered one)")
	cmd.Flags().StringVarP(&subcategory, "subcategory", "s", "", "Subcategory")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not remember the concept's category")
	// A negative value would otherwise be read as a shorthand flag.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// dateRangeFlags filters a ledger by optional --from/--to bounds.
type dateRangeFlags struct {
	from, to string
}

func (f *dateRangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First date included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date included (YYYY-MM-DD)")
}

func (f *dateRangeFlags) apply(l *ledger.Ledger) (*ledger.Ledger, error) {
	if f.from == "" && f.to == "" {
		return l, nil
	}
	first, last, ok := l.Span()
	if !ok {
		return l, nil
	}
	var err error
	if f.from != "" {
		if first, err = core.ParseDate(f.from); err != nil {
			return nil, fmt.Errorf("--from %q: %w", f.from, err)
		}
	}
	if f.to != "" {
		if last, err = core.ParseDate(f.to); err != nil {
			return nil, fmt.Errorf("--to %q: %w", f.to, err)
		}
	}
	return l.FilterByDateRange(first, last), nil
}

func (a *app) listCmd() *cobra.Command {
	var (
		rng dateRangeFlags
		day string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				l := svc.Snapshot()
				var txs []core.Transaction
				if day != "" {
					d, err := core.ParseDate(day)
					if err != nil {
						return fmt.Errorf("--day %q: %w", day, err)
					}
					txs = l.TransactionsOn(d)
				} else {
					filtered, err := rng.apply(l)
					if err != nil {
						return err
					}
					txs = filtered.Transactions()
				}
				rows := toRows(txs)
				return a.render(cmd, rows, func(w io.Writer) { printTransactions(w, rows) })
			})
		},
	}
	rng.register(cmd)
	cmd.Flags().StringVar(&day, "day", "", "Only transactions dated this day, in date order")
	return cmd
}

func (a *app) conceptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "concepts",
		Short: "Show the remembered category of every stored concept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				concepts := svc.Concepts()
				names := make([]string, 0, len(concepts))
				for c := range concepts {
					names = append(names, c)
				}
				sort.Strings(names)
				return a.render(cmd, concepts, func(w io.Writer) {
					fmt.Fprintln(w, "CONCEPT\tCATEGORY")
					for _, c := range names {
						fmt.Fprintf(w, "%s\t%s\n", c, concepts[c])
					}
				})
			})
		},
	}
}

type statusRow struct {
	Transactions int            `json:"transactions"`
	Concepts     int            `json:"concepts"`
	First        string         `json:"first,omitempty"`
	Last         string         `json:"last,omitempty"`
	Store        *storage.Stats `json:"store,omitempty"`
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the ledger and, for SQLite, what the database holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				l := svc.Snapshot()
				row := statusRow{Transactions: l.Len(), Concepts: len(l.Concepts())}
				if first, last, ok := l.Span(); ok {
					row.First, row.Last = first.String(), last.String()
				}
				stats, ok, err := svc.StoreStats(ctx)
				if err != nil {
					return err
				}
				if ok {
					row.Store = &stats
				}
				return a.render(cmd, row, func(w io.Writer) {
					fmt.Fprintf(w, "transactions\t%d\n", row.Transactions)
					fmt.Fprintf(w, "concepts\t%d\n", row.Concepts)
					if row.First != "" {
						fmt.Fprintf(w, "span\t%s .. %s\n", row.First, row.Last)
					}
					if row.Store != nil {
						fmt.Fprintf(w, "stored rows\t%d\n", row.Store.Transactions)
						fmt.Fprintf(w, "stored concepts\t%d\n", row.Store.Concepts)
						fmt.Fprintf(w, "schema version\t%d\n", row.Store.SchemaVersion)
					}
				})
			})
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the configured store with the content of a CSV ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := storage.LoadCSV(args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				if err := svc.Replace(ctx, src.Transactions()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions from %s\n", src.Len(), args[0])
				return nil
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write the configured store to a CSV ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, svc *services.LedgerService) error {
				l := svc.Snapshot()
				if err := storage.SaveCSV(args[0], l); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d transactions to %s\n", l.Len(), args[0])
				return nil
			})
		},
	}
}

func parseYearMonthArgs(args []string) (year, month int, err error) {
	if year, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, fmt.Errorf("year %q: %w", args[0], core.ErrInvalidDate)
	}
	if month, err = strconv.Atoi(args[1]); err != nil {
		return 0, 0, fmt.Errorf("month %q: %w", args[1], core.ErrInvalidMonth)
	}
	return year, month, nil
}

// categoryBars computes bars over the filtered ledger, or uses the cached
// full-ledger bars when no range is given.
func categoryBars(svc *services.LedgerService, rng dateRangeFlags) ([]core.CategoryBar, error) {
	if rng.from == "" && rng.to == "" {
		return svc.CategoryBars(), nil
	}
	l, err := rng.apply(svc.Snapshot())
	if err != nil {
		return nil, err
	}
	return aggregate.CategoryBars(l, svc.Investments()), nil
}
