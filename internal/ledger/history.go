package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"orcamento/internal/core"
)

// HistoryFilter narrows closed months by outcome.
type HistoryFilter string

const (
	FilterAll      HistoryFilter = "all"
	FilterPositive HistoryFilter = "positive" // remaining > 0
	FilterNegative HistoryFilter = "negative" // remaining < 0
	FilterHigh     HistoryFilter = "high"     // expenses > 90% of income
	FilterLow      HistoryFilter = "low"      // expenses < 50% of income
)

var ErrInvalidFilter = errors.New("invalid history filter")

func ParseHistoryFilter(s string) (HistoryFilter, error) {
	switch f := HistoryFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPositive, FilterNegative, FilterHigh, FilterLow:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Match reports whether m passes the filter. Ratios are compared in integer
// cents: expenses*10 > income*9 and expenses*2 < income.
func (f HistoryFilter) Match(m core.MonthlyData) bool {
	switch f {
	case FilterPositive:
		return m.Remaining.Cents > 0
	case FilterNegative:
		return m.Remaining.Cents < 0
	case FilterHigh:
		return m.Expenses.Cents*10 > m.Income.Cents*9
	case FilterLow:
		return m.Expenses.Cents*2 < m.Income.Cents
	default:
		return true
	}
}

// FilterHistory returns the months whose label or notes contain query
// (case-insensitive) and that pass filter, most recently closed first.
// The input slice is not modified.
func FilterHistory(history []core.MonthlyData, query string, filter HistoryFilter) []core.MonthlyData {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]core.MonthlyData, 0, len(history))
	for _, m := range history {
		if q != "" &&
			!strings.Contains(strings.ToLower(m.Month), q) &&
			!strings.Contains(strings.ToLower(m.Notes), q) {
			continue
		}
		if !filter.Match(m) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClosedAt.After(out[j].ClosedAt)
	})
	return out
}

// SearchHistory applies FilterHistory to the Manager's archive.
func (m *Manager) SearchHistory(query string, filter HistoryFilter) []core.MonthlyData {
	return FilterHistory(m.History(), query, filter)
}
