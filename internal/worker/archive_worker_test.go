package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/amqp"
	"orcamento/internal/core"
	"orcamento/internal/ledger"
	"orcamento/internal/report"
	"orcamento/internal/storage/memory"
)

type fakeSheets struct {
	appended []string
	deleted  []string
	err      error
}

func (f *fakeSheets) AppendMonth(_ context.Context, m core.MonthlyData) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, m.ID)
	return "Historico!A2:H2", nil
}

func (f *fakeSheets) DeleteMonth(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeNotifier struct {
	sent     []string
	filename string
	doc      []byte
	err      error
}

func (f *fakeNotifier) SendMonthClosed(_ context.Context, m core.MonthlyData, filename string, doc []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m.ID)
	f.filename, f.doc = filename, doc
	return nil
}

func closedMonth(id string, closedAt time.Time) core.MonthlyData {
	return core.MonthlyData{
		ID:            id,
		Month:         "dezembro de 2024",
		Year:          2024,
		Period:        core.Period{Year: 2024, Month: time.December},
		Income:        core.FromUnits(7500),
		Expenses:      core.FromUnits(4130),
		Remaining:     core.FromUnits(3370),
		ClosedAt:      closedAt,
		Categories:    []core.ExpenseCategory{},
		FixedExpenses: []core.FixedExpense{},
		IncomeSources: []core.IncomeSource{},
		CardExpenses:  map[string][]core.CardExpense{},
	}
}

type fixture struct {
	store    *memory.Store
	sheets   *fakeSheets
	notifier *fakeNotifier
	worker   *ArchiveWorker
	dir      string
}

func newFixture(t *testing.T, months ...core.MonthlyData) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewWithState(ledger.State{History: months}),
		sheets:   &fakeSheets{},
		notifier: &fakeNotifier{},
		dir:      filepath.Join(t.TempDir(), "archive"),
	}
	f.worker = NewArchiveWorker(f.store, f.dir, f.sheets, f.sheets, f.notifier, 2)
	f.worker.now = func() time.Time { return time.Date(2025, time.January, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestArchiveFilename(t *testing.T) {
	at := time.Date(2024, time.December, 30, 18, 4, 5, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "20241230T210405Z-abc.json", ArchiveFilename(closedMonth("abc", at)))
}

func TestExportMonth(t *testing.T) {
	m := closedMonth("m-1", time.Date(2024, time.December, 30, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, m)

	require.NoError(t, f.worker.ExportMonth(context.Background(), m))

	path := filepath.Join(f.dir, ArchiveFilename(m))
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc report.History
	require.NoError(t, jsoniter.Unmarshal(b, &doc))
	assert.Equal(t, 1, doc.TotalMeses)
	assert.Equal(t, "02/01/2025", doc.DataGeracao)
	require.Len(t, doc.Meses, 1)
	assert.Equal(t, "m-1", doc.Meses[0].ID)
	assert.Equal(t, core.FromUnits(3370), doc.Meses[0].Saldo)

	assert.Equal(t, []string{"m-1"}, f.sheets.appended)
	assert.Equal(t, []string{"m-1"}, f.notifier.sent)
	assert.Equal(t, ArchiveFilename(m), f.notifier.filename)
	assert.Equal(t, b, f.notifier.doc)

	ref, ok := f.store.ExportRef("m-1")
	require.True(t, ok)
	assert.Equal(t, path, ref)

	pending, err := f.store.PendingExports(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExportMonthStopsOnSheetsFailure(t *testing.T) {
	m := closedMonth("m-1", time.Now())
	f := newFixture(t, m)
	f.sheets.err = errors.New("quota exceeded")

	err := f.worker.ExportMonth(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, f.notifier.sent)

	_, ok := f.store.ExportRef("m-1")
	assert.False(t, ok, "failed export must stay pending")
}

func TestExportMonthMailsOnce(t *testing.T) {
	m := closedMonth("m-1", time.Date(2024, time.December, 30, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, m)
	ctx := context.Background()

	require.NoError(t, f.worker.ExportMonth(ctx, m))
	// Redelivered event after a successful export.
	require.NoError(t, f.worker.HandleMonthEvent(ctx, amqp.NewMonthClosedEvent("m-1", m.Month)))

	assert.Equal(t, []string{"m-1"}, f.notifier.sent)
}

type failingMarks struct {
	*memory.Store
	err error
}

func (f *failingMarks) MarkExported(context.Context, string, string, time.Time) error {
	return f.err
}

func TestExportMonthDoesNotMailUnmarkedMonth(t *testing.T) {
	m := closedMonth("m-1", time.Now())
	f := newFixture(t, m)
	source := &failingMarks{Store: f.store, err: errors.New("database is locked")}
	w := NewArchiveWorker(source, f.dir, f.sheets, f.sheets, f.notifier, 2)

	err := w.ExportMonth(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, f.notifier.sent, "retry would mail a second time")
}

func TestExportMonthSendFailureStaysExported(t *testing.T) {
	m := closedMonth("m-1", time.Now())
	f := newFixture(t, m)
	f.notifier.err = errors.New("smtp: connection refused")
	ctx := context.Background()

	require.NoError(t, f.worker.ExportMonth(ctx, m))
	_, ok := f.store.ExportRef("m-1")
	assert.True(t, ok)

	pending, err := f.store.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExportMonthWithoutOptionalOutputs(t *testing.T) {
	m := closedMonth("m-1", time.Now())
	store := memory.NewWithState(ledger.State{History: []core.MonthlyData{m}})
	w := NewArchiveWorker(store, t.TempDir(), nil, nil, nil, 0)

	require.NoError(t, w.ExportMonth(context.Background(), m))
	assert.Equal(t, 10, w.batchSize)
	_, ok := store.ExportRef("m-1")
	assert.True(t, ok)
}

func TestHandleMonthEvent(t *testing.T) {
	m := closedMonth("m-1", time.Date(2024, time.December, 30, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, m)
	ctx := context.Background()

	require.NoError(t, f.worker.HandleMonthEvent(ctx, amqp.NewMonthClosedEvent("m-1", m.Month)))
	path := filepath.Join(f.dir, ArchiveFilename(m))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, f.worker.HandleMonthEvent(ctx, amqp.NewMonthDeletedEvent("m-1")))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, []string{"m-1"}, f.sheets.deleted)
}

func TestHandleMonthEventForMissingMonthIsAcked(t *testing.T) {
	f := newFixture(t)
	err := f.worker.HandleMonthEvent(context.Background(), amqp.NewMonthClosedEvent("gone", "x"))
	assert.NoError(t, err)
	assert.Empty(t, f.sheets.appended)
}

func TestHandleMonthEventUnknownType(t *testing.T) {
	f := newFixture(t)
	err := f.worker.HandleMonthEvent(context.Background(), &amqp.MonthEvent{Type: "month.renamed", MonthID: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown event type"))
}

func TestRemoveMonthLeavesOtherFiles(t *testing.T) {
	a := closedMonth("a", time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC))
	b := closedMonth("b", time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC))
	f := newFixture(t, a, b)
	ctx := context.Background()
	require.NoError(t, f.worker.ExportMonth(ctx, a))
	require.NoError(t, f.worker.ExportMonth(ctx, b))

	require.NoError(t, f.worker.RemoveMonth(ctx, "a"))

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ArchiveFilename(b), entries[0].Name())
}

func TestStartupExportCheck(t *testing.T) {
	a := closedMonth("a", time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC))
	b := closedMonth("b", time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC))
	f := newFixture(t, a, b)

	require.NoError(t, f.worker.StartupExportCheck(context.Background()))
	assert.Equal(t, []string{"a", "b"}, f.sheets.appended)

	// Nothing left on the second run.
	require.NoError(t, f.worker.StartupExportCheck(context.Background()))
	assert.Len(t, f.sheets.appended, 2)
}
