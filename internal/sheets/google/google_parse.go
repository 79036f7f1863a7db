package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"orcamento/internal/core"
	ports "orcamento/internal/sheets"
)

// historyHeader is written to row 1 when the sheet is empty.
var historyHeader = []any{"ID", "Mês", "Período", "Renda", "Gastos", "Saldo", "Fechado em", "Notas"}

// monthRow converts a closed month into the values appended to the sheet.
func monthRow(m core.MonthlyData) []any {
	return []any{
		m.ID,
		m.Month,
		m.Period.String(),
		m.Income.Float(),
		m.Expenses.Float(),
		m.Remaining.Float(),
		m.ClosedAt.UTC().Format(time.RFC3339),
		m.Notes,
	}
}

// parseMonthRows reads the values matrix back into rows, skipping the header
// and any row without an ID.
func parseMonthRows(values [][]interface{}) []ports.MonthRow {
	out := make([]ports.MonthRow, 0, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) == 0 {
			continue
		}
		id := strings.TrimSpace(cols[0])
		if id == "" || (i == 0 && strings.EqualFold(id, "ID")) {
			continue
		}
		row := ports.MonthRow{
			ID:       id,
			Month:    strings.TrimSpace(safeGet(cols, 1)),
			Period:   strings.TrimSpace(safeGet(cols, 2)),
			ClosedAt: strings.TrimSpace(safeGet(cols, 6)),
			Notes:    strings.TrimSpace(safeGet(cols, 7)),
		}
		row.Income.Cents, _ = parseReaisToCents(safeGet(cols, 3))
		row.Expenses.Cents, _ = parseReaisToCents(safeGet(cols, 4))
		row.Remaining.Cents, _ = parseReaisToCents(safeGet(cols, 5))
		out = append(out, row)
	}
	return out
}

// rowIndexByID maps month IDs in column A to 1-based sheet rows.
func rowIndexByID(values [][]interface{}) map[string]int {
	index := make(map[string]int, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) == 0 {
			continue
		}
		if id := strings.TrimSpace(cols[0]); id != "" {
			index[id] = i + 1
		}
	}
	return index
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseReaisToCents accepts sheet-formatted amounts such as "1.234,56",
// "R$ 10,00", "-5.5" or 12.3.
func parseReaisToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return int64(f*100.0 - 0.5), true
	}
	return int64(f*100.0 + 0.5), true
}
