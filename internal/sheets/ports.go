package sheets

import (
	"context"

	"orcamento/internal/core"
)

// Ports for outbound adapters.
type (
	// HistoryWriter mirrors closed months into an external spreadsheet.
	HistoryWriter interface {
		// AppendMonth adds one summary row. Appending a month that is already
		// present returns the existing row reference.
		AppendMonth(ctx context.Context, m core.MonthlyData) (rowRef string, err error)
	}

	HistoryDeleter interface {
		DeleteMonth(ctx context.Context, id string) error
	}

	// HistoryReader lists the summary rows currently in the sheet.
	HistoryReader interface {
		ListMonths(ctx context.Context) ([]MonthRow, error)
	}
)

// MonthRow is one closed month as stored in the history sheet.
type MonthRow struct {
	ID        string
	Month     string
	Period    string
	Income    core.Money
	Expenses  core.Money
	Remaining core.Money
	ClosedAt  string
	Notes     string
}
