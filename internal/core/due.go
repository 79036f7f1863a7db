package core

import (
	"fmt"
	"time"
)

type DueUrgency string

const (
	UrgencyOverdue DueUrgency = "overdue"
	UrgencySoon    DueUrgency = "soon" // within 3 days
	UrgencyNear    DueUrgency = "near" // within a week
	UrgencyLater   DueUrgency = "later"
	UrgencyNone    DueUrgency = "none"
)

// DaysUntilDue counts calendar days from today to due. Negative means overdue.
func DaysUntilDue(due Date, now time.Time) int {
	today := DateOf(now)
	return int(due.Sub(today.Time).Hours() / 24)
}

// DueLabel renders the due distance the way the dashboard shows it.
func DueLabel(due Date, now time.Time) string {
	if due.IsZero() {
		return ""
	}
	days := DaysUntilDue(due, now)
	switch {
	case days < 0:
		return fmt.Sprintf("Atrasado (%d dias)", -days)
	case days == 0:
		return "Vence hoje"
	case days == 1:
		return "Vence amanhã"
	default:
		return fmt.Sprintf("Vence em %d dias", days)
	}
}

func DueUrgencyOf(due Date, now time.Time) DueUrgency {
	if due.IsZero() {
		return UrgencyNone
	}
	days := DaysUntilDue(due, now)
	switch {
	case days < 0:
		return UrgencyOverdue
	case days <= 3:
		return UrgencySoon
	case days <= 7:
		return UrgencyNear
	default:
		return UrgencyLater
	}
}

// IsOverdue reports whether a pending fixed expense is past its due date.
func (e FixedExpense) IsOverdue(now time.Time) bool {
	return e.Status == StatusPending && !e.DueDate.IsZero() && DaysUntilDue(e.DueDate, now) < 0
}
