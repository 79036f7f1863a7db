package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/core"
)

func TestCloseMonthSnapshotsAndResets(t *testing.T) {
	store := &recordingStore{}
	m, _ := newTestManager(t, store, time.Date(2024, time.December, 28, 18, 0, 0, 0, time.UTC))
	populate(t, m)
	ctx := context.Background()
	require.NoError(t, m.SetNotes(ctx, "  mês tranquilo "))

	before := m.Working()
	snap, err := m.CloseMonth(ctx)
	require.NoError(t, err)

	assert.Equal(t, "dezembro de 2024", snap.Month)
	assert.Equal(t, 2024, snap.Year)
	assert.Equal(t, int64(750000), snap.Income.Cents)
	assert.Equal(t, int64(413000), snap.Expenses.Cents)
	assert.Equal(t, int64(337000), snap.Remaining.Cents)
	assert.Equal(t, "mês tranquilo", snap.Notes)
	assert.Equal(t, before.Categories, snap.Categories)
	assert.Equal(t, before.FixedExpenses, snap.FixedExpenses)
	assert.Equal(t, before.IncomeSources, snap.IncomeSources)

	// Every card has a key, the inactive one included.
	require.Len(t, snap.CardExpenses, len(before.Cards))
	for _, card := range before.Cards {
		assert.Equal(t, card.Expenses, snap.CardExpenses[card.ID])
	}

	after := m.Working()
	assert.Equal(t, core.Period{Year: 2025, Month: time.January}, after.Period)
	assert.Empty(t, after.FixedExpenses)
	assert.Empty(t, after.Notes)
	require.Len(t, after.Categories, len(before.Categories))
	for i, c := range after.Categories {
		assert.Zero(t, c.Spent.Cents)
		assert.Equal(t, before.Categories[i].Estimated, c.Estimated)
		assert.Equal(t, before.Categories[i].Category, c.Category)
		assert.Equal(t, before.Categories[i].Color, c.Color)
	}
	require.Len(t, after.Cards, len(before.Cards))
	for i, c := range after.Cards {
		assert.Empty(t, c.Expenses)
		assert.Equal(t, before.Cards[i].IsActive, c.IsActive)
		assert.Equal(t, before.Cards[i].Name, c.Name)
		assert.Equal(t, before.Cards[i].Bank, c.Bank)
	}
	assert.Equal(t, before.IncomeSources, after.IncomeSources)

	require.Len(t, store.archived, 1)
	assert.Equal(t, snap.ID, store.archived[0].ID)
	assert.Equal(t, after.Period, store.working.Period)
}

func TestCloseMonthExampleRemaining(t *testing.T) {
	m, _ := newTestManager(t, nil, time.Date(2024, time.October, 31, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, err := m.RecordIncome(ctx, "Salário", core.FromUnits(7500))
	require.NoError(t, err)
	cats := m.Working().Categories
	setSpent(t, m, cats[0].ID, core.FromUnits(6000))
	setSpent(t, m, cats[1].ID, core.FromUnits(200))

	snap, err := m.CloseMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.FromUnits(1300), snap.Remaining)
	for _, c := range m.Working().Categories {
		assert.Zero(t, c.Spent.Cents)
	}
	// October 31st advances to November, not December.
	assert.Equal(t, core.Period{Year: 2024, Month: time.November}, m.Period())
}

func TestClosedMonthIsIsolatedFromWorkingState(t *testing.T) {
	m, _ := newTestManager(t, nil, time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC))
	populate(t, m)
	ctx := context.Background()

	snap, err := m.CloseMonth(ctx)
	require.NoError(t, err)

	w := m.Working()
	setSpent(t, m, w.Categories[0].ID, core.FromUnits(999))
	setEstimate(t, m, w.Categories[0].ID, core.FromUnits(1))
	_, err = m.AddCardExpense(ctx, w.Cards[0].ID, CardExpenseInput{Description: "Nova", Category: "Lazer", Value: core.FromUnits(5)})
	require.NoError(t, err)
	_, err = m.UpdateFixedExpense(ctx, "missing", FixedExpensePatch{})
	require.ErrorIs(t, err, ErrFixedExpenseNotFound)

	stored, err := m.Month(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, stored)
	assert.Equal(t, int64(120000), stored.Categories[0].Spent.Cents)
	assert.Len(t, stored.CardExpenses[w.Cards[0].ID], 1)

	// Mutating a returned copy does not reach the archive either.
	stored.Categories[0].Spent = core.Money{}
	again, err := m.Month(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), again.Categories[0].Spent.Cents)
}

func TestCloseMonthWithZeroIncomeIsAllowed(t *testing.T) {
	m, _ := newTestManager(t, nil, time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	cats := m.Working().Categories
	setSpent(t, m, cats[0].ID, core.FromUnits(50))

	snap, err := m.CloseMonthWithNotes(ctx, "sem renda")
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), snap.Remaining.Cents)
	assert.Equal(t, "sem renda", snap.Notes)

	// Closing again records a second, empty month.
	second, err := m.CloseMonth(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, snap.ID, second.ID)
	assert.Zero(t, second.Expenses.Cents)
	assert.Len(t, m.History(), 2)
}

func TestDeleteHistoricalMonth(t *testing.T) {
	store := &recordingStore{}
	m, _ := newTestManager(t, store, time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := m.CloseMonth(ctx)
	require.NoError(t, err)
	second, err := m.CloseMonth(ctx)
	require.NoError(t, err)

	require.NoError(t, m.DeleteHistoricalMonth(ctx, first.ID))
	assert.ErrorIs(t, m.DeleteHistoricalMonth(ctx, first.ID), ErrMonthNotFound)

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, []string{first.ID}, store.deleted)
}

func TestSnapshotOfEmptyMonthUsesEmptyCollections(t *testing.T) {
	snap := Snapshot(core.WorkingMonth{Period: core.Period{Year: 2024, Month: time.May}}, "x", time.Now())
	assert.NotNil(t, snap.Categories)
	assert.NotNil(t, snap.FixedExpenses)
	assert.NotNil(t, snap.IncomeSources)
	assert.NotNil(t, snap.CardExpenses)
	assert.Empty(t, snap.Notes)
}

func TestSnapshotYearFollowsArchivedPeriod(t *testing.T) {
	w := core.WorkingMonth{Period: core.Period{Year: 2024, Month: time.December}}
	snap := Snapshot(w, "m-1", time.Date(2025, time.January, 3, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 2024, snap.Year)
	assert.Equal(t, "dezembro de 2024", snap.Month)
}
