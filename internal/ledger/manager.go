// Package ledger holds the working month and the archive of closed months.
//
// The Manager is the single owner of ledger state in its process. Every action
// validates its input, applies the change to a copy of the working month,
// persists it through the configured Store and only then swaps the copy in. A
// failed action leaves the state untouched.
//
// Several processes may share one store. Writes carry the store version the
// Manager last saw; when another process wrote first the Manager reloads and
// applies the action again on top of the fresh state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orcamento/internal/core"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrIncomeNotFound       = fmt.Errorf("income source %w", ErrNotFound)
	ErrCategoryNotFound     = fmt.Errorf("category %w", ErrNotFound)
	ErrFixedExpenseNotFound = fmt.Errorf("fixed expense %w", ErrNotFound)
	ErrCardNotFound         = fmt.Errorf("card %w", ErrNotFound)
	ErrCardExpenseNotFound  = fmt.Errorf("card expense %w", ErrNotFound)
	ErrMonthNotFound        = fmt.Errorf("closed month %w", ErrNotFound)
)

// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	working  core.WorkingMonth
	history  []core.MonthlyData
	settings core.Settings
	revision uint64
	version  uint64

	store Store
	now   func() time.Time
	newID func() string
}

type Option func(*Manager)

// WithClock overrides the wall clock used for timestamps and period advance.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func WithSettings(s core.Settings) Option {
	return func(m *Manager) { m.settings = s.Clone() }
}

// WithInitialState seeds a ledger whose store holds nothing yet.
func WithInitialState(st State) Option {
	return func(m *Manager) {
		m.working = st.Working.Clone()
		m.history = cloneHistory(st.History)
	}
}

// NewID returns a time-ordered UUID string.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New loads the ledger from store, or starts a fresh working month from the
// settings' category template when the store is empty. A nil store keeps
// state in memory only.
func New(ctx context.Context, store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		store = nopStore{}
	}
	m := &Manager{
		store:    store,
		settings: core.DefaultSettings(),
		now:      time.Now,
		newID:    NewID,
	}
	for _, opt := range opts {
		opt(m)
	}

	st, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if found {
		m.apply(st)
		slog.InfoContext(ctx, "Ledger loaded",
			"period", m.working.Period.String(),
			"closed_months", len(m.history),
			"version", m.version)
		return m, nil
	}

	if m.working.Period.Validate() != nil {
		m.working = m.freshWorkingMonth()
	}
	if err := m.initialize(ctx); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		// Another process initialized the store first.
		if err := m.reload(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
	slog.InfoContext(ctx, "Ledger initialized",
		"period", m.working.Period.String(),
		"categories", len(m.working.Categories),
		"closed_months", len(m.history))
	return m, nil
}

func (m *Manager) initialize(ctx context.Context) error {
	if err := m.store.SaveWorking(ctx, m.working, m.version); err != nil {
		return fmt.Errorf("save initial working month: %w", err)
	}
	m.version++
	for _, month := range m.history {
		if err := m.store.ArchiveMonth(ctx, month, m.working, m.version); err != nil {
			return fmt.Errorf("save initial history: %w", err)
		}
		m.version++
	}
	return nil
}

func (m *Manager) apply(st State) {
	m.working = st.Working
	m.history = st.History
	m.version = st.Version
}

// reload replaces the in-memory state with the stored one. Callers hold mu.
func (m *Manager) reload(ctx context.Context) error {
	st, found, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}
	if !found {
		return fmt.Errorf("reload ledger: %w", ErrConflict)
	}
	m.apply(st)
	m.revision++
	slog.InfoContext(ctx, "Ledger reloaded from store",
		"period", m.working.Period.String(),
		"closed_months", len(m.history),
		"version", m.version)
	return nil
}

// Refresh reloads the ledger when another process wrote to the store since
// this Manager last read or wrote it.
func (m *Manager) Refresh(ctx context.Context) error {
	v, err := m.store.Version(ctx)
	if errors.Is(err, errNoVersion) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store version: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v == m.version {
		return nil
	}
	return m.reload(ctx)
}

const maxWriteAttempts = 3

// persist runs write with the version this Manager last saw. On ErrConflict
// the state is reloaded and write runs again, so write must derive its change
// from the current m.working and m.history. Callers hold mu.
func (m *Manager) persist(ctx context.Context, op string, write func(version uint64) error) error {
	for attempt := 1; ; attempt++ {
		err := write(m.version)
		if err == nil {
			m.version++
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxWriteAttempts {
			return err
		}
		slog.WarnContext(ctx, "Ledger changed by another writer, retrying",
			"operation", op,
			"attempt", attempt,
			"version", m.version)
		if err := m.reload(ctx); err != nil {
			return err
		}
	}
}

func (m *Manager) freshWorkingMonth() core.WorkingMonth {
	w := core.WorkingMonth{
		Period:        core.PeriodOf(m.now()),
		IncomeSources: []core.IncomeSource{},
		FixedExpenses: []core.FixedExpense{},
		Cards:         []core.CreditCard{},
	}
	w.Categories = make([]core.ExpenseCategory, 0, len(m.settings.Categories))
	for _, tpl := range m.settings.Categories {
		w.Categories = append(w.Categories, core.ExpenseCategory{
			ID:        m.newID(),
			Category:  tpl.Name,
			Estimated: tpl.Estimated,
			Color:     colorOr(tpl.Color, core.DefaultColor),
		})
	}
	return w
}

// update runs fn against a copy of the working month and commits it when fn
// and the store both succeed. fn may run more than once when another process
// wrote to the store in between.
func (m *Manager) update(ctx context.Context, op string, fn func(w *core.WorkingMonth) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next core.WorkingMonth
	err := m.persist(ctx, op, func(version uint64) error {
		next = m.working.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		if err := m.store.SaveWorking(ctx, next, version); err != nil {
			return fmt.Errorf("%s: save working month: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.working = next
	m.revision++
	slog.DebugContext(ctx, "Ledger updated", "operation", op, "revision", m.revision)
	return nil
}

// Working returns a deep copy of the working month.
func (m *Manager) Working() core.WorkingMonth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.working.Clone()
}

// Period returns the current working period.
func (m *Manager) Period() core.Period {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.working.Period
}

// History returns closed months in the order they were closed.
func (m *Manager) History() []core.MonthlyData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneHistory(m.history)
}

// Month returns one closed month by id.
func (m *Manager) Month(id string) (core.MonthlyData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, month := range m.history {
		if month.ID == id {
			return month.Clone(), nil
		}
	}
	return core.MonthlyData{}, ErrMonthNotFound
}

func (m *Manager) Settings() core.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Clone()
}

// UpdateSettings replaces the in-session settings.
func (m *Manager) UpdateSettings(s core.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s.Clone()
	m.revision++
	return nil
}

// Revision increases on every successful mutation.
func (m *Manager) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// Summary computes the dashboard aggregations over the working month.
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Summarize(m.working, m.settings.AlertThreshold)
	s.History = HistorySeries(m.history)
	s.HistoryCategories = HistoryCategoryTotals(m.history)
	return s
}

// Now exposes the Manager's clock to collaborators that stamp documents.
func (m *Manager) Now() time.Time {
	return m.now()
}

func cloneHistory(in []core.MonthlyData) []core.MonthlyData {
	out := make([]core.MonthlyData, len(in))
	for i, month := range in {
		out[i] = month.Clone()
	}
	return out
}

func colorOr(color, fallback string) string {
	if strings.TrimSpace(color) == "" {
		return fallback
	}
	return color
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
