package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salestats/internal/core"

	"modernc.org/sqlite"
)

const selectColumns = `SELECT id, title, price, description, category, image, sold, date_of_sale FROM transactions`

func init() {
	// lower() in SQLite only folds ASCII.
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, foldFunc); err != nil {
		panic(fmt.Sprintf("register sqlite fold function: %v", err))
	}
}

// foldFunc lowercases its argument with Unicode rules. NULL stays NULL.
func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("fold: unsupported argument type %T", v)
	}
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceAll swaps the whole collection in one transaction: either every
// record of txs is stored or the previous collection stays untouched.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	removed, _ := res.RowsAffected()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions
		(id, title, price, description, category, image, sold, date_of_sale, sale_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.ID,
			t.Title,
			t.Price,
			t.Description,
			t.Category,
			t.Image,
			t.Sold,
			t.DateOfSale.UTC().Format(time.RFC3339Nano),
			int(t.SaleMonth()),
		); err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Transactions replaced in SQLite",
		"removed", removed,
		"inserted", len(txs))

	return nil
}

// All returns the whole collection ordered by id.
func (r *SQLiteRepository) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Search returns one page of the listing. The month filter is applied before
// paging so a page never comes back short because of other months.
func (r *SQLiteRepository) Search(ctx context.Context, q core.ListQuery) ([]core.Transaction, error) {
	q = q.Normalize()

	var (
		where []string
		args  []any
	)

	if price, ok := q.PriceTerm(); ok {
		where = append(where, "price = ?")
		args = append(args, price)
	} else if q.Search != "" {
		where = append(where, "(instr(fold(title), fold(?)) > 0 OR instr(fold(description), fold(?)) > 0)")
		args = append(args, q.Search, q.Search)
	}

	if q.Month != "" {
		month, ok := core.ParseMonth(q.Month)
		if !ok {
			return []core.Transaction{}, nil
		}
		where = append(where, "sale_month = ?")
		args = append(args, int(month))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, q.PerPage, q.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	txs := []core.Transaction{}
	for rows.Next() {
		var (
			t    core.Transaction
			sold int64
			date string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Price, &t.Description, &t.Category, &t.Image, &sold, &date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, date)
		if err != nil {
			return nil, fmt.Errorf("parse date of sale for %d: %w", t.ID, err)
		}
		t.Sold = sold != 0
		t.DateOfSale = parsed
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
