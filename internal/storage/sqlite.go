package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	jsoniter "github.com/json-iterator/go"

	"orcamento/internal/core"
	"orcamento/internal/ledger"

	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExported = errors.New("closed month already exported")
)

const timeLayout = time.RFC3339Nano

// SQLiteStore persists the ledger in a single SQLite file. The server, the
// worker and the CLI may share the file: WAL mode lets them read concurrently
// and the version in ledger_meta turns a write based on stale state into
// ledger.ErrConflict.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ledger.Store = (*SQLiteStore)(nil)

func dsnFor(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dsnFor(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path is the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func exec(ctx context.Context, tx *sql.Tx, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveWorking replaces the stored working month.
func (s *SQLiteStore) SaveWorking(ctx context.Context, w core.WorkingMonth, version uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, w, version); err != nil {
			return err
		}
		return saveWorking(ctx, tx, w)
	})
}

// ArchiveMonth inserts the snapshot and saves next in one transaction.
func (s *SQLiteStore) ArchiveMonth(ctx context.Context, snap core.MonthlyData, next core.WorkingMonth, version uint64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, next, version); err != nil {
			return err
		}
		if err := insertClosedMonth(ctx, tx, snap); err != nil {
			return err
		}
		return saveWorking(ctx, tx, next)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Closed month saved to SQLite",
		"month_id", snap.ID,
		"month", snap.Month,
		"income_cents", snap.Income.Cents,
		"expenses_cents", snap.Expenses.Cents)
	return nil
}

func (s *SQLiteStore) DeleteMonth(ctx context.Context, id string, version uint64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execCount(ctx, tx, squirrel.Update("ledger_meta").
			Set("version", version+1).
			Where(squirrel.Eq{"id": 1, "version": version}))
		if err != nil {
			return fmt.Errorf("update ledger version: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete closed month: %w", ledger.ErrConflict)
		}
		n, err = execCount(ctx, tx, squirrel.Delete("closed_months").Where(squirrel.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("delete closed month: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("closed month %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Closed month deleted from SQLite", "month_id", id)
	return nil
}

func execCount(ctx context.Context, tx *sql.Tx, q squirrel.Sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// bumpVersion writes the ledger_meta row for w when the stored version is
// still version, moving it to version+1. Version 0 means the row must not
// exist yet.
func bumpVersion(ctx context.Context, tx *sql.Tx, w core.WorkingMonth, version uint64) error {
	updatedAt := time.Now().UTC().Format(timeLayout)
	var q squirrel.Sqlizer
	if version == 0 {
		q = squirrel.Insert("ledger_meta").
			Columns("id", "period_year", "period_month", "notes", "updated_at", "version").
			Values(1, w.Period.Year, int(w.Period.Month), w.Notes, updatedAt, 1).
			Suffix("ON CONFLICT(id) DO NOTHING")
	} else {
		q = squirrel.Update("ledger_meta").
			Set("period_year", w.Period.Year).
			Set("period_month", int(w.Period.Month)).
			Set("notes", w.Notes).
			Set("updated_at", updatedAt).
			Set("version", version+1).
			Where(squirrel.Eq{"id": 1, "version": version})
	}
	n, err := execCount(ctx, tx, q)
	if err != nil {
		return fmt.Errorf("save ledger meta: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("save ledger meta at version %d: %w", version, ledger.ErrConflict)
	}
	return nil
}

// saveWorking rewrites the working-month tables. ledger_meta is written by
// bumpVersion in the same transaction.
func saveWorking(ctx context.Context, tx *sql.Tx, w core.WorkingMonth) error {
	for _, table := range []string{"card_expenses", "credit_cards", "fixed_expenses", "expense_categories", "income_sources"} {
		if err := exec(ctx, tx, squirrel.Delete(table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(w.IncomeSources) > 0 {
		q := squirrel.Insert("income_sources").Columns("id", "position", "description", "value_cents")
		for i, src := range w.IncomeSources {
			q = q.Values(src.ID, i, src.Description, src.Value.Cents)
		}
		if err := exec(ctx, tx, q); err != nil {
			return fmt.Errorf("save income sources: %w", err)
		}
	}

	if len(w.Categories) > 0 {
		q := squirrel.Insert("expense_categories").
			Columns("id", "position", "category", "estimated_cents", "spent_cents", "color")
		for i, c := range w.Categories {
			q = q.Values(c.ID, i, c.Category, c.Estimated.Cents, c.Spent.Cents, c.Color)
		}
		if err := exec(ctx, tx, q); err != nil {
			return fmt.Errorf("save categories: %w", err)
		}
	}

	if len(w.FixedExpenses) > 0 {
		q := squirrel.Insert("fixed_expenses").
			Columns("id", "position", "description", "category", "value_cents", "due_date", "status", "reference_month")
		for i, e := range w.FixedExpenses {
			q = q.Values(e.ID, i, e.Description, e.Category, e.Value.Cents, e.DueDate.String(), string(e.Status), e.ReferenceMonth)
		}
		if err := exec(ctx, tx, q); err != nil {
			return fmt.Errorf("save fixed expenses: %w", err)
		}
	}

	if len(w.Cards) > 0 {
		cards := squirrel.Insert("credit_cards").
			Columns("id", "position", "name", "bank", "color", "icon", "is_active", "created_at")
		expenses := squirrel.Insert("card_expenses").
			Columns("id", "card_id", "position", "description", "category", "value_cents", "due_date", "installment")
		nExpenses := 0
		for i, c := range w.Cards {
			cards = cards.Values(c.ID, i, c.Name, c.Bank, c.Color, c.Icon, c.IsActive, c.CreatedAt.UTC().Format(timeLayout))
			for j, e := range c.Expenses {
				expenses = expenses.Values(e.ID, c.ID, j, e.Description, e.Category, e.Value.Cents, e.DueDate.String(), e.Installment)
				nExpenses++
			}
		}
		if err := exec(ctx, tx, cards); err != nil {
			return fmt.Errorf("save cards: %w", err)
		}
		if nExpenses > 0 {
			if err := exec(ctx, tx, expenses); err != nil {
				return fmt.Errorf("save card expenses: %w", err)
			}
		}
	}
	return nil
}

type monthPayload struct {
	Categories    []core.ExpenseCategory        `json:"categories"`
	FixedExpenses []core.FixedExpense           `json:"fixedExpenses"`
	CardExpenses  map[string][]core.CardExpense `json:"cardExpenses"`
	IncomeSources []core.IncomeSource           `json:"incomeSources"`
}

func insertClosedMonth(ctx context.Context, tx *sql.Tx, m core.MonthlyData) error {
	payload, err := json.Marshal(monthPayload{
		Categories:    m.Categories,
		FixedExpenses: m.FixedExpenses,
		CardExpenses:  m.CardExpenses,
		IncomeSources: m.IncomeSources,
	})
	if err != nil {
		return fmt.Errorf("encode closed month payload: %w", err)
	}
	q := squirrel.Insert("closed_months").
		Columns("id", "month_label", "year", "period_year", "period_month",
			"income_cents", "expenses_cents", "remaining_cents", "closed_at", "notes", "payload").
		Values(m.ID, m.Month, m.Year, m.Period.Year, int(m.Period.Month),
			m.Income.Cents, m.Expenses.Cents, m.Remaining.Cents,
			m.ClosedAt.UTC().Format(timeLayout), m.Notes, string(payload))
	if err := exec(ctx, tx, q); err != nil {
		return fmt.Errorf("insert closed month: %w", err)
	}
	return nil
}
