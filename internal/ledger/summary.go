package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"orcamento/internal/core"
)

// infoThreshold is the budget share above which an informational alert fires.
const infoThreshold = 70

type (
	// Summary is the dashboard view of a working month. All amounts are raw.
	Summary struct {
		Period           core.Period     `json:"period"`
		Label            string          `json:"label"`
		TotalIncome      core.Money      `json:"totalIncome"`
		TotalEstimated   core.Money      `json:"totalEstimated"`
		TotalSpent       core.Money      `json:"totalSpent"`
		TotalFixed       core.Money      `json:"totalFixed"`
		TotalCards       core.Money      `json:"totalCards"`
		Difference       core.Money      `json:"difference"`
		Remaining        core.Money      `json:"remaining"`
		BudgetPercentage decimal.Decimal `json:"budgetPercentage"`
		TopCategory      *TopCategory    `json:"topCategory"`
		Alerts           []core.Alert    `json:"alerts"`

		Categories        []CategoryPoint `json:"categories"`
		SpendingPie       []PieSlice      `json:"spendingPie"`
		Cards             []CardSlice     `json:"cards"`
		History           []HistoryPoint  `json:"history"`
		HistoryCategories []PieSlice      `json:"historyCategories"`
	}

	TopCategory struct {
		Category string     `json:"category"`
		Spent    core.Money `json:"spent"`
	}

	CategoryPoint struct {
		Category   string              `json:"category"`
		Estimated  core.Money          `json:"estimated"`
		Spent      core.Money          `json:"spent"`
		Difference core.Money          `json:"difference"`
		Status     core.SpendingStatus `json:"status"`
	}

	PieSlice struct {
		Name       string          `json:"name"`
		Value      core.Money      `json:"value"`
		Percentage decimal.Decimal `json:"percentage"`
		Color      string          `json:"color,omitempty"`
	}

	CardSlice struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Value      core.Money      `json:"value"`
		Color      string          `json:"color"`
		Percentage decimal.Decimal `json:"percentage"`
	}

	HistoryPoint struct {
		Month     string     `json:"month"`
		Income    core.Money `json:"income"`
		Expenses  core.Money `json:"expenses"`
		Remaining core.Money `json:"remaining"`
	}
)

func TotalIncome(sources []core.IncomeSource) core.Money {
	var total core.Money
	for _, s := range sources {
		total = total.Add(s.Value)
	}
	return total
}

func TotalEstimated(cats []core.ExpenseCategory) core.Money {
	var total core.Money
	for _, c := range cats {
		total = total.Add(c.Estimated)
	}
	return total
}

// TotalSpent sums category spend only. Fixed and card expenses are tracked
// separately and do not count here.
func TotalSpent(cats []core.ExpenseCategory) core.Money {
	var total core.Money
	for _, c := range cats {
		total = total.Add(c.Spent)
	}
	return total
}

func TotalFixed(fixed []core.FixedExpense) core.Money {
	var total core.Money
	for _, e := range fixed {
		total = total.Add(e.Value)
	}
	return total
}

// TotalCards sums every card, inactive ones included.
func TotalCards(cards []core.CreditCard) core.Money {
	var total core.Money
	for _, c := range cards {
		total = total.Add(c.Total())
	}
	return total
}

// BudgetPercentage is spent over income times 100, or 0 without income.
func BudgetPercentage(spent, income core.Money) decimal.Decimal {
	return core.Percent(spent, income)
}

// FindTopCategory returns the category with the highest spend. On ties the
// first one wins. ok is false when there are no categories.
func FindTopCategory(cats []core.ExpenseCategory) (core.ExpenseCategory, bool) {
	if len(cats) == 0 {
		return core.ExpenseCategory{}, false
	}
	top := cats[0]
	for _, c := range cats[1:] {
		if c.Spent.Cents > top.Spent.Cents {
			top = c
		}
	}
	return top, true
}

// Alerts evaluates the budget rules in order. The budget level alert is at
// most one of error, warning or info; the overspent category alert is
// independent of it.
func Alerts(cats []core.ExpenseCategory, income core.Money, threshold int) []core.Alert {
	alerts := []core.Alert{}
	spent := TotalSpent(cats)
	pct := BudgetPercentage(spent, income)

	switch {
	case spent.Cents > income.Cents:
		alerts = append(alerts, core.Alert{
			Level:   core.AlertError,
			Message: "Atenção: Seus gastos ultrapassaram a renda do mês!",
		})
	case pct.GreaterThan(decimal.NewFromInt(int64(threshold))):
		alerts = append(alerts, core.Alert{
			Level:   core.AlertWarning,
			Message: fmt.Sprintf("Você já usou mais de %d%% do seu orçamento!", threshold),
		})
	case pct.GreaterThan(decimal.NewFromInt(infoThreshold)):
		alerts = append(alerts, core.Alert{
			Level:   core.AlertInfo,
			Message: fmt.Sprintf("Você já usou mais de %d%% do seu orçamento.", infoThreshold),
		})
	}

	var over []string
	for _, c := range cats {
		if c.Overspent() {
			over = append(over, c.Category)
		}
	}
	if len(over) > 0 {
		alerts = append(alerts, core.Alert{
			Level:   core.AlertWarning,
			Message: fmt.Sprintf("%d categorias extrapolaram o orçamento: %s", len(over), strings.Join(over, ", ")),
		})
	}
	return alerts
}

// Summarize computes every dashboard figure for w.
func Summarize(w core.WorkingMonth, alertThreshold int) Summary {
	income := TotalIncome(w.IncomeSources)
	estimated := TotalEstimated(w.Categories)
	spent := TotalSpent(w.Categories)
	cards := TotalCards(w.Cards)

	s := Summary{
		Period:           w.Period,
		Label:            w.Period.Label(),
		TotalIncome:      income,
		TotalEstimated:   estimated,
		TotalSpent:       spent,
		TotalFixed:       TotalFixed(w.FixedExpenses),
		TotalCards:       cards,
		Difference:       estimated.Sub(spent),
		Remaining:        income.Sub(spent),
		BudgetPercentage: BudgetPercentage(spent, income).Round(2),
		Alerts:           Alerts(w.Categories, income, alertThreshold),
		Categories:       make([]CategoryPoint, 0, len(w.Categories)),
		SpendingPie:      []PieSlice{},
		Cards:            []CardSlice{},
		History:          []HistoryPoint{},
	}
	if top, ok := FindTopCategory(w.Categories); ok {
		s.TopCategory = &TopCategory{Category: top.Category, Spent: top.Spent}
	}

	for _, c := range w.Categories {
		s.Categories = append(s.Categories, CategoryPoint{
			Category:   c.Category,
			Estimated:  c.Estimated,
			Spent:      c.Spent,
			Difference: c.Spent.Sub(c.Estimated),
			Status:     c.Status(),
		})
		if c.Spent.Cents > 0 {
			s.SpendingPie = append(s.SpendingPie, PieSlice{
				Name:       c.Category,
				Value:      c.Spent,
				Percentage: core.Percent(c.Spent, spent).Round(1),
				Color:      c.Color,
			})
		}
	}

	// Shares are of the all-cards total even though only active cards are listed.
	for _, card := range w.Cards {
		if !card.IsActive {
			continue
		}
		total := card.Total()
		s.Cards = append(s.Cards, CardSlice{
			ID:         card.ID,
			Name:       card.Name,
			Value:      total,
			Color:      card.Color,
			Percentage: core.Percent(total, cards).Round(1),
		})
	}
	return s
}

// HistorySeries is the per-month income/expenses/remaining series in closing order.
func HistorySeries(history []core.MonthlyData) []HistoryPoint {
	out := make([]HistoryPoint, 0, len(history))
	for _, m := range history {
		out = append(out, HistoryPoint{
			Month:     m.Month,
			Income:    m.Income,
			Expenses:  m.Expenses,
			Remaining: m.Remaining,
		})
	}
	return out
}

// HistoryCategoryTotals sums category spend across closed months, keeping the
// order in which categories first appear.
func HistoryCategoryTotals(history []core.MonthlyData) []PieSlice {
	var allExpenses core.Money
	index := map[string]int{}
	out := []PieSlice{}
	for _, m := range history {
		allExpenses = allExpenses.Add(m.Expenses)
		for _, c := range m.Categories {
			i, ok := index[c.Category]
			if !ok {
				i = len(out)
				index[c.Category] = i
				out = append(out, PieSlice{Name: c.Category, Color: c.Color})
			}
			out[i].Value = out[i].Value.Add(c.Spent)
		}
	}
	for i := range out {
		out[i].Percentage = core.Percent(out[i].Value, allExpenses).Round(1)
	}
	return out
}
