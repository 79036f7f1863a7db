package ledger

import (
	"slices"
	"time"

	"orcamento/internal/core"
)

const (
	DueKindFixed = "fixed"
	DueKindCard  = "card"
)

// DueItem is a dated bill of the working month with its distance to now.
type DueItem struct {
	ID          string                  `json:"id"`
	Kind        string                  `json:"kind"`
	CardID      string                  `json:"cardId,omitempty"`
	Description string                  `json:"description"`
	Category    string                  `json:"category"`
	Value       core.Money              `json:"value"`
	DueDate     core.Date               `json:"dueDate"`
	Status      core.FixedExpenseStatus `json:"status,omitempty"`
	DueLabel    string                  `json:"dueLabel"`
	Urgency     core.DueUrgency         `json:"urgency"`
}

// DueItems lists fixed expenses that are not paid and expenses of active
// cards, soonest first. Items without a due date are left out.
func DueItems(w core.WorkingMonth, now time.Time) []DueItem {
	out := []DueItem{}
	for _, e := range w.FixedExpenses {
		if e.DueDate.IsZero() || e.Status == core.StatusPaid {
			continue
		}
		out = append(out, DueItem{
			ID:          e.ID,
			Kind:        DueKindFixed,
			Description: e.Description,
			Category:    e.Category,
			Value:       e.Value,
			DueDate:     e.DueDate,
			Status:      e.Status,
			DueLabel:    core.DueLabel(e.DueDate, now),
			Urgency:     core.DueUrgencyOf(e.DueDate, now),
		})
	}
	for _, card := range w.Cards {
		if !card.IsActive {
			continue
		}
		for _, e := range card.Expenses {
			if e.DueDate.IsZero() {
				continue
			}
			out = append(out, DueItem{
				ID:          e.ID,
				Kind:        DueKindCard,
				CardID:      card.ID,
				Description: e.Description,
				Category:    e.Category,
				Value:       e.Value,
				DueDate:     e.DueDate,
				DueLabel:    core.DueLabel(e.DueDate, now),
				Urgency:     core.DueUrgencyOf(e.DueDate, now),
			})
		}
	}
	slices.SortStableFunc(out, func(a, b DueItem) int { return a.DueDate.Compare(b.DueDate.Time) })
	return out
}
