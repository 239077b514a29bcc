package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"tracker/internal/core"

	_ "modernc.org/sqlite"
)

// Store is a persistent home for a ledger.
type Store interface {
	Load(ctx context.Context) ([]core.Transaction, error)
	Save(ctx context.Context, txs []core.Transaction) error
	Close() error
}

// Stats describes what a store holds.
type Stats struct {
	Transactions  int64 `json:"transactions"`
	Concepts      int   `json:"concepts"`
	SchemaVersion uint  `json:"schema_version"`
}

// Inspector is implemented by stores that can describe their content
// without loading it.
type Inspector interface {
	Stats(ctx context.Context) (Stats, error)
}

// Appender is implemented by stores that can add a single transaction
// without rewriting everything.
type Appender interface {
	Append(ctx context.Context, t core.Transaction) error
}

var (
	_ Store     = (*CSVStore)(nil)
	_ Store     = (*SQLiteRepository)(nil)
	_ Appender  = (*SQLiteRepository)(nil)
	_ Inspector = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sqlx.DB
	path    string
	version uint
}

// transactionRow mirrors one row of the transactions table.
type transactionRow struct {
	Position    int64  `db:"position"`
	Concept     string `db:"concept"`
	Value       string `db:"value"`
	Date        string `db:"date"`
	Category    string `db:"category"`
	Subcategory string `db:"subcategory"`
	Store       bool   `db:"store"`
}

func toRow(position int64, t core.Transaction) transactionRow {
	return transactionRow{
		Position:    position,
		Concept:     t.Concept,
		Value:       t.Value.String(),
		Date:        t.Date.String(),
		Category:    t.Category,
		Subcategory: t.Subcategory,
		Store:       t.Store,
	}
}

// transaction converts a stored row back into the domain type. line is
// reported in parse errors, counting a virtual header as line 1.
func (row transactionRow) transaction(line int) (core.Transaction, error) {
	amount, err := core.ParseAmount(row.Value)
	if err != nil {
		return core.Transaction{}, &core.ParseError{Line: line, Column: ColValue, Value: row.Value, Err: err}
	}
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, &core.ParseError{Line: line, Column: ColDate, Value: row.Date, Err: err}
	}
	return core.Transaction{
		Concept:     row.Concept,
		Value:       amount,
		Date:        d,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Store:       row.Store,
	}, nil
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite ledger ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, path: dbPath, version: version}, nil
}

// SchemaVersion is the migration version the database was brought to.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns every transaction in ledger order.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Transaction, error) {
	var rows []transactionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT position, concept, value, date, category, subcategory, store
		FROM transactions
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		t, err := row.transaction(i + 2)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// Save replaces the stored ledger with txs inside one database transaction.
func (r *SQLiteRepository) Save(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	stmt, err := dbTx.PrepareNamedContext(ctx, insertTransactionSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		if _, err := stmt.ExecContext(ctx, toRow(int64(i), t)); err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Ledger saved to SQLite", "path", r.path, "count", len(txs))
	return nil
}

// Append adds t after the last stored transaction.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) error {
	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	var next int64
	if err := dbTx.GetContext(ctx, &next, `SELECT COALESCE(MAX(position) + 1, 0) FROM transactions`); err != nil {
		return fmt.Errorf("next position: %w", err)
	}
	if _, err := dbTx.NamedExecContext(ctx, insertTransactionSQL, toRow(next, t)); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"position", next,
		"concept", t.Concept,
		"value", t.Value.String(),
		"date", t.Date.String())
	return nil
}

// Stats counts rows and remembered concepts with SQL.
func (r *SQLiteRepository) Stats(ctx context.Context) (Stats, error) {
	n, err := r.count(ctx)
	if err != nil {
		return Stats{}, err
	}
	concepts, err := r.conceptCategories(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Transactions: n, Concepts: len(concepts), SchemaVersion: r.version}, nil
}

func (r *SQLiteRepository) count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions`); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// conceptCategories reads the concept memory straight from the database.
func (r *SQLiteRepository) conceptCategories(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Concept  string `db:"concept"`
		Category string `db:"category"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT concept, category FROM concept_categories`); err != nil {
		return nil, fmt.Errorf("query concept categories: %w", err)
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Concept] = row.Category
	}
	return out, nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (position, concept, value, date, category, subcategory, store)
	VALUES (:position, :concept, :value, :date, :category, :subcategory, :store)`
