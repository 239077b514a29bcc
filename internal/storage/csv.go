package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tracker/internal/core"
	"tracker/internal/ledger"
)

// Column names of the ledger file, in on-disk order.
const (
	ColConcept     = "Concept"
	ColValue       = "Value"
	ColDate        = "Date"
	ColCategory    = "Category"
	ColSubcategory = "Subcategory"
	ColStore       = "Store"
)

var Header = []string{ColConcept, ColValue, ColDate, ColCategory, ColSubcategory, ColStore}

// Subcategory may be absent from older files; every other column is required.
var requiredColumns = []string{ColConcept, ColValue, ColDate, ColCategory, ColStore}

var errMissingColumn = errors.New("missing required column")

// ReadCSV parses a ledger file. Columns are located by header name so their
// order on disk does not matter. Any malformed row aborts the read with a
// *core.ParseError.
func ReadCSV(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &core.ParseError{Line: 0, Column: ColConcept, Err: errMissingColumn}
	}
	if err != nil {
		return nil, csvParseError(err)
	}
	cols := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &core.ParseError{Line: 0, Column: name, Err: errMissingColumn}
		}
	}

	var txs []core.Transaction
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvParseError(err)
		}
		line, _ := cr.FieldPos(0)
		t, err := parseRecord(record, cols, line)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// WriteCSV serialises txs in order using the Header layout.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range txs {
		if err := cw.Write(formatRecord(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV reads the ledger stored at path.
func LoadCSV(path string) (*ledger.Ledger, error) {
	txs, err := readCSVFile(path)
	if err != nil {
		return nil, err
	}
	return ledger.FromTransactions(txs), nil
}

// SaveCSV writes every transaction of l to path, replacing the file
// atomically.
func SaveCSV(path string, l *ledger.Ledger) error {
	return writeCSVFile(path, l.Transactions())
}

// CSVStore persists a ledger as a single CSV file.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the file backing the store.
func (s *CSVStore) Path() string {
	return s.path
}

// Load returns the stored transactions. A missing file is an empty ledger.
func (s *CSVStore) Load(_ context.Context) ([]core.Transaction, error) {
	txs, err := readCSVFile(s.path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return txs, err
}

// Save replaces the file content with txs.
func (s *CSVStore) Save(_ context.Context, txs []core.Transaction) error {
	return writeCSVFile(s.path, txs)
}

func (s *CSVStore) Close() error { return nil }

func readCSVFile(path string) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	txs, err := ReadCSV(f)
	if err != nil {
		var pe *core.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return nil, &core.IOError{Op: "read", Path: path, Err: err}
	}
	return txs, nil
}

func writeCSVFile(path string, txs []core.Transaction) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, txs); err != nil {
		tmp.Close()
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &core.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func parseRecord(record []string, cols map[string]int, line int) (core.Transaction, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	fail := func(column string, err error) error {
		return &core.ParseError{Line: line, Column: column, Value: field(column), Err: err}
	}

	value, err := core.ParseAmount(field(ColValue))
	if err != nil {
		return core.Transaction{}, fail(ColValue, err)
	}
	date, err := core.ParseDate(field(ColDate))
	if err != nil {
		return core.Transaction{}, fail(ColDate, err)
	}
	store, err := parseStore(field(ColStore))
	if err != nil {
		return core.Transaction{}, fail(ColStore, err)
	}
	concept := field(ColConcept)
	if concept == "" {
		return core.Transaction{}, fail(ColConcept, core.ErrEmptyConcept)
	}

	return core.Transaction{
		Concept:     concept,
		Value:       value,
		Date:        date,
		Category:    field(ColCategory),
		Subcategory: field(ColSubcategory),
		Store:       store,
	}, nil
}

// parseStore accepts the literals written by both this package and older
// spreadsheet exports (True/False, true/false, 1/0). Empty means false.
func parseStore(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func formatRecord(t core.Transaction) []string {
	store := "False"
	if t.Store {
		store = "True"
	}
	return []string{
		t.Concept,
		t.Value.String(),
		t.Date.String(),
		t.Category,
		t.Subcategory,
		store,
	}
}

func csvParseError(err error) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &core.ParseError{Line: ce.Line, Err: ce.Err}
	}
	return err
}
