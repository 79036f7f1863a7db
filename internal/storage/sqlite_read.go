package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
)

var closedMonthColumns = []string{
	"id", "month_label", "year", "period_year", "period_month",
	"income_cents", "expenses_cents", "remaining_cents", "closed_at", "notes", "payload",
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Load reads the working month and every closed month in closing order. All
// reads share one transaction, so a concurrent writer in another process
// never yields a mix of old and new rows.
func (s *SQLiteStore) Load(ctx context.Context) (st ledger.State, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	var year, month int
	query, args, err := squirrel.Select("period_year", "period_month", "notes", "version").
		From("ledger_meta").Where(squirrel.Eq{"id": 1}).ToSql()
	if err != nil {
		return st, false, fmt.Errorf("build query: %w", err)
	}
	err = tx.QueryRowContext(ctx, query, args...).Scan(&year, &month, &st.Working.Notes, &st.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("read ledger meta: %w", err)
	}
	st.Working.Period = core.Period{Year: year, Month: time.Month(month)}

	if st.Working.IncomeSources, err = loadIncomeSources(ctx, tx); err != nil {
		return st, false, err
	}
	if st.Working.Categories, err = loadCategories(ctx, tx); err != nil {
		return st, false, err
	}
	if st.Working.FixedExpenses, err = loadFixedExpenses(ctx, tx); err != nil {
		return st, false, err
	}
	if st.Working.Cards, err = loadCards(ctx, tx); err != nil {
		return st, false, err
	}
	if st.History, err = selectClosedMonths(ctx, tx, allClosedMonths()); err != nil {
		return st, false, err
	}
	return st, true, nil
}

// Version returns the write counter kept in ledger_meta; 0 before the first
// save.
func (s *SQLiteStore) Version(ctx context.Context) (uint64, error) {
	query, args, err := squirrel.Select("version").From("ledger_meta").Where(squirrel.Eq{"id": 1}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var v uint64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger version: %w", err)
	}
	return v, nil
}

func runQuery(ctx context.Context, db querier, q squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.QueryContext(ctx, query, args...)
}

func loadIncomeSources(ctx context.Context, db querier) ([]core.IncomeSource, error) {
	rows, err := runQuery(ctx, db, squirrel.Select("id", "description", "value_cents").
		From("income_sources").OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("query income sources: %w", err)
	}
	defer rows.Close()

	out := []core.IncomeSource{}
	for rows.Next() {
		var src core.IncomeSource
		if err := rows.Scan(&src.ID, &src.Description, &src.Value.Cents); err != nil {
			return nil, fmt.Errorf("scan income source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func loadCategories(ctx context.Context, db querier) ([]core.ExpenseCategory, error) {
	rows, err := runQuery(ctx, db, squirrel.Select("id", "category", "estimated_cents", "spent_cents", "color").
		From("expense_categories").OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []core.ExpenseCategory{}
	for rows.Next() {
		var c core.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Category, &c.Estimated.Cents, &c.Spent.Cents, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadFixedExpenses(ctx context.Context, db querier) ([]core.FixedExpense, error) {
	rows, err := runQuery(ctx, db, squirrel.
		Select("id", "description", "category", "value_cents", "due_date", "status", "reference_month").
		From("fixed_expenses").OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("query fixed expenses: %w", err)
	}
	defer rows.Close()

	out := []core.FixedExpense{}
	for rows.Next() {
		var (
			e      core.FixedExpense
			due    string
			status string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Category, &e.Value.Cents, &due, &status, &e.ReferenceMonth); err != nil {
			return nil, fmt.Errorf("scan fixed expense: %w", err)
		}
		if e.DueDate, err = core.ParseDate(due); err != nil {
			return nil, fmt.Errorf("fixed expense %s: %w", e.ID, err)
		}
		e.Status = core.FixedExpenseStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadCards(ctx context.Context, db querier) ([]core.CreditCard, error) {
	rows, err := runQuery(ctx, db, squirrel.
		Select("id", "name", "bank", "color", "icon", "is_active", "created_at").
		From("credit_cards").OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	out := []core.CreditCard{}
	index := map[string]int{}
	for rows.Next() {
		var (
			c       core.CreditCard
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Bank, &c.Color, &c.Icon, &c.IsActive, &created); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if c.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("card %s created_at: %w", c.ID, err)
		}
		c.Expenses = []core.CardExpense{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	expRows, err := runQuery(ctx, db, squirrel.
		Select("id", "card_id", "description", "category", "value_cents", "due_date", "installment").
		From("card_expenses").OrderBy("card_id", "position"))
	if err != nil {
		return nil, fmt.Errorf("query card expenses: %w", err)
	}
	defer expRows.Close()

	for expRows.Next() {
		var (
			e      core.CardExpense
			cardID string
			due    string
		)
		if err := expRows.Scan(&e.ID, &cardID, &e.Description, &e.Category, &e.Value.Cents, &due, &e.Installment); err != nil {
			return nil, fmt.Errorf("scan card expense: %w", err)
		}
		if e.DueDate, err = core.ParseDate(due); err != nil {
			return nil, fmt.Errorf("card expense %s: %w", e.ID, err)
		}
		i, ok := index[cardID]
		if !ok {
			continue
		}
		out[i].Expenses = append(out[i].Expenses, e)
	}
	return out, expRows.Err()
}

// ListClosedMonths returns every closed month in closing order.
func (s *SQLiteStore) ListClosedMonths(ctx context.Context) ([]core.MonthlyData, error) {
	return selectClosedMonths(ctx, s.db, allClosedMonths())
}

func allClosedMonths() squirrel.SelectBuilder {
	return squirrel.Select(closedMonthColumns...).From("closed_months").OrderBy("rowid")
}

// GetClosedMonth returns one closed month.
func (s *SQLiteStore) GetClosedMonth(ctx context.Context, id string) (core.MonthlyData, error) {
	months, err := selectClosedMonths(ctx, s.db, squirrel.Select(closedMonthColumns...).
		From("closed_months").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return core.MonthlyData{}, err
	}
	if len(months) == 0 {
		return core.MonthlyData{}, fmt.Errorf("closed month %s: %w", id, ErrNotFound)
	}
	return months[0], nil
}

// PendingExports lists closed months the worker has not exported yet,
// oldest first.
func (s *SQLiteStore) PendingExports(ctx context.Context, limit int) ([]core.MonthlyData, error) {
	return selectClosedMonths(ctx, s.db, squirrel.Select(closedMonthColumns...).
		From("closed_months").
		Where(squirrel.Eq{"exported_at": nil}).
		OrderBy("closed_at").
		Limit(uint64(limit)))
}

// MarkExported records where a closed month was exported to. Only the first
// mark wins; later ones get ErrAlreadyExported.
func (s *SQLiteStore) MarkExported(ctx context.Context, id, ref string, at time.Time) error {
	query, args, err := squirrel.Update("closed_months").
		Set("exported_at", at.UTC().Format(timeLayout)).
		Set("export_ref", ref).
		Where(squirrel.Eq{"id": id, "exported_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark closed month exported: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM closed_months WHERE id = ?", id).Scan(&exists)
		switch {
		case err != nil:
			return fmt.Errorf("check closed month: %w", err)
		case exists > 0:
			return fmt.Errorf("closed month %s: %w", id, ErrAlreadyExported)
		}
		return fmt.Errorf("closed month %s: %w", id, ErrNotFound)
	}
	return nil
}

func selectClosedMonths(ctx context.Context, db querier, q squirrel.Sqlizer) ([]core.MonthlyData, error) {
	rows, err := runQuery(ctx, db, q)
	if err != nil {
		return nil, fmt.Errorf("query closed months: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlyData{}
	for rows.Next() {
		var (
			m           core.MonthlyData
			periodMonth int
			closedAt    string
			payload     string
		)
		if err := rows.Scan(&m.ID, &m.Month, &m.Year, &m.Period.Year, &periodMonth,
			&m.Income.Cents, &m.Expenses.Cents, &m.Remaining.Cents, &closedAt, &m.Notes, &payload); err != nil {
			return nil, fmt.Errorf("scan closed month: %w", err)
		}
		m.Period.Month = time.Month(periodMonth)
		if m.ClosedAt, err = time.Parse(timeLayout, closedAt); err != nil {
			return nil, fmt.Errorf("closed month %s closed_at: %w", m.ID, err)
		}
		var p monthPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode closed month %s: %w", m.ID, err)
		}
		m.Categories = orEmpty(p.Categories)
		m.FixedExpenses = orEmpty(p.FixedExpenses)
		m.IncomeSources = orEmpty(p.IncomeSources)
		m.CardExpenses = p.CardExpenses
		if m.CardExpenses == nil {
			m.CardExpenses = map[string][]core.CardExpense{}
		}
		for id, list := range m.CardExpenses {
			m.CardExpenses[id] = orEmpty(list)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
