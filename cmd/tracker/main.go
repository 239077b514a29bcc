package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/services"
)

// Exit codes follow sysexits where one fits.
const (
	exitError       = 1
	exitEmptyResult = 2
	exitDataErr     = 65
	exitIOErr       = 74
)

// app holds the persistent flags shared by every subcommand.
type app struct {
	file    string
	cfgFile string
	backend string
	format  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Personal finance ledger",
		Long: `tracker records dated transactions in a CSV (or SQLite) ledger and
prints summaries over them: category totals, monthly and daily balances,
expense extremes and earning/expense/investment totals.

Examples:
  tracker add --category housing "rent" -500 2024-03-01
  tracker month 2024 3 --opening 1200
  tracker categories --from 2024-01-01 --format json
  tracker --backend sqlite import ./data/ledger.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.format != "table" && a.format != "json" {
				return fmt.Errorf("invalid --format %q: must be table or json", a.format)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.file, "file", "", "CSV ledger file (forces the csv backend)")
	flags.StringVar(&a.cfgFile, "config", "", "YAML file with investment categories and palette (default from TRACKER_CONFIG)")
	flags.StringVar(&a.backend, "backend", "", "Storage backend: csv or sqlite (default from DATA_BACKEND)")
	flags.StringVar(&a.format, "format", "table", "Output format: table or json")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level to stderr")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.categoriesCmd(),
		a.monthCmd(),
		a.dayCmd(),
		a.extremesCmd(),
		a.typesCmd(),
		a.seriesCmd(),
		a.conceptsCmd(),
		a.statusCmd(),
		a.importCmd(),
		a.exportCmd(),
	)
	return root
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyResult):
		return exitEmptyResult
	case errors.Is(err, core.ErrIO):
		return exitIOErr
	case errors.Is(err, core.ErrParse),
		errors.Is(err, core.ErrEmptyConcept),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth):
		return exitDataErr
	default:
		return exitError
	}
}

// loadConfig applies the command line overrides on top of the environment.
func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if a.cfgFile != "" {
		cfg.ConfigFile = a.cfgFile
	}
	if cfg.ConfigFile != "" {
		fc, err := config.LoadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(fc)
	}
	if a.backend != "" {
		cfg.DataBackend = a.backend
	}
	if a.file != "" {
		cfg.DataBackend = config.BackendCSV
		cfg.LedgerCSVPath = a.file
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) logger(w io.Writer) *log.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, Component: log.ComponentCLI, Output: w})
	// Storage and AMQP log through the default logger.
	log.SetDefault(logger)
	return logger
}

// withLedger opens the configured store, runs fn and closes the store.
func (a *app) withLedger(cmd *cobra.Command, fn func(ctx context.Context, svc *services.LedgerService) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := cli.NewBackend(ctx, a.logger(cmd.ErrOrStderr()), cfg)
	if err != nil {
		return err
	}
	runErr := fn(ctx, res.Ledger)
	if err := res.Cleanup(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// render writes v as indented JSON or, in table mode, through table.
func (a *app) render(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
