package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"orcamento/internal/core"
)

// Snapshot builds the archive record for w. The result shares no slices
// with w, so later edits to the working month never reach history.
func Snapshot(w core.WorkingMonth, id string, closedAt time.Time) core.MonthlyData {
	cardExpenses := make(map[string][]core.CardExpense, len(w.Cards))
	for _, card := range w.Cards {
		list := make([]core.CardExpense, len(card.Expenses))
		copy(list, card.Expenses)
		cardExpenses[card.ID] = list
	}

	income := TotalIncome(w.IncomeSources)
	spent := TotalSpent(w.Categories)

	// Year is the archived month's year, not the close date's, so it agrees
	// with Month.
	snap := core.MonthlyData{
		ID:            id,
		Month:         w.Period.Label(),
		Year:          w.Period.Year,
		Period:        w.Period,
		Income:        income,
		Expenses:      spent,
		Remaining:     income.Sub(spent),
		Categories:    slices.Clone(w.Categories),
		FixedExpenses: slices.Clone(w.FixedExpenses),
		CardExpenses:  cardExpenses,
		IncomeSources: slices.Clone(w.IncomeSources),
		ClosedAt:      closedAt.UTC(),
		Notes:         strings.TrimSpace(w.Notes),
	}
	if snap.Categories == nil {
		snap.Categories = []core.ExpenseCategory{}
	}
	if snap.FixedExpenses == nil {
		snap.FixedExpenses = []core.FixedExpense{}
	}
	if snap.IncomeSources == nil {
		snap.IncomeSources = []core.IncomeSource{}
	}
	return snap
}

// NextWorkingMonth is w after a close: spend zeroed, fixed expenses and card
// expenses emptied, notes cleared, period moved to the month after now.
// Categories, cards and income sources carry over.
func NextWorkingMonth(w core.WorkingMonth, now time.Time) core.WorkingMonth {
	next := w.Clone()
	for i := range next.Categories {
		next.Categories[i].Spent = core.Money{}
	}
	next.FixedExpenses = []core.FixedExpense{}
	for i := range next.Cards {
		next.Cards[i].Expenses = []core.CardExpense{}
	}
	next.Notes = ""
	next.Period = core.PeriodOf(now).Next()
	return next
}

// CloseMonth archives the working month using its draft notes.
func (m *Manager) CloseMonth(ctx context.Context) (core.MonthlyData, error) {
	return m.closeMonth(ctx, nil)
}

// CloseMonthWithNotes sets the notes and closes in one step.
func (m *Manager) CloseMonthWithNotes(ctx context.Context, notes string) (core.MonthlyData, error) {
	return m.closeMonth(ctx, &notes)
}

func (m *Manager) closeMonth(ctx context.Context, notes *string) (core.MonthlyData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current := m.working
	if notes != nil {
		current.Notes = *notes
	}

	snap := Snapshot(current, m.newID(), now)
	next := NextWorkingMonth(current, now)

	// A close is not replayed after a conflict: the month the caller saw may
	// already be archived by another process.
	if err := m.store.ArchiveMonth(ctx, snap, next, m.version); err != nil {
		if errors.Is(err, ErrConflict) {
			if rerr := m.reload(ctx); rerr != nil {
				slog.ErrorContext(ctx, "Reload after close conflict failed", "error", rerr)
			}
		}
		return core.MonthlyData{}, fmt.Errorf("close month: %w", err)
	}

	m.version++
	m.history = append(m.history, snap)
	m.working = next
	m.revision++

	slog.InfoContext(ctx, "Month closed",
		"month_id", snap.ID,
		"period", snap.Period.String(),
		"income_cents", snap.Income.Cents,
		"expenses_cents", snap.Expenses.Cents,
		"remaining_cents", snap.Remaining.Cents,
		"next_period", next.Period.String())

	return snap.Clone(), nil
}

// DeleteHistoricalMonth removes a closed month. There is no undo.
func (m *Manager) DeleteHistoricalMonth(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.persist(ctx, "delete_month", func(version uint64) error {
		if m.historyIndex(id) < 0 {
			return ErrMonthNotFound
		}
		if err := m.store.DeleteMonth(ctx, id, version); err != nil {
			return fmt.Errorf("delete closed month: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	i := m.historyIndex(id)
	m.history = slices.Delete(m.history, i, i+1)
	m.revision++

	slog.InfoContext(ctx, "Closed month deleted", "month_id", id)
	return nil
}

func (m *Manager) historyIndex(id string) int {
	return slices.IndexFunc(m.history, func(month core.MonthlyData) bool { return month.ID == id })
}
