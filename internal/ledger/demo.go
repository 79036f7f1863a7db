package ledger

import (
	"time"

	"orcamento/internal/core"
)

// DemoState is a populated ledger for trying the service out: three income
// sources, the default categories with some spend, two bills, two cards and
// two closed months.
func DemoState(now time.Time, newID func() string) State {
	period := core.PeriodOf(now)
	day := func(d int) core.Date { return core.NewDate(period.Year, period.Month, d) }

	spent := []int64{1200, 250, 300, 450, 750, 100, 150, 100, 400, 150, 200, 350, 180, 0}
	estimated := []int64{1500, 200, 300, 400, 800, 200, 150, 100, 300, 200, 250, 300, 200, 500}
	cats := make([]core.ExpenseCategory, len(core.DefaultCategories))
	for i, tpl := range core.DefaultCategories {
		cats[i] = core.ExpenseCategory{
			ID:        newID(),
			Category:  tpl.Name,
			Estimated: core.FromUnits(estimated[i]),
			Spent:     core.FromUnits(spent[i]),
			Color:     tpl.Color,
		}
	}

	created := time.Date(period.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	nubank := core.CreditCard{
		ID: newID(), Name: "Nubank", Bank: "Nubank", Color: "#8B5CF6", Icon: "🟣",
		IsActive: true, CreatedAt: created,
		Expenses: []core.CardExpense{
			{ID: newID(), Description: "Netflix", Category: "Streaming", Value: core.FromCents(4590), DueDate: day(15), Installment: "1/12"},
			{ID: newID(), Description: "iFood", Category: "Restaurante", Value: core.FromCents(8950), DueDate: day(15)},
		},
	}
	bradesco := core.CreditCard{
		ID: newID(), Name: "Bradesco", Bank: "Bradesco", Color: "#EC4899", Icon: "🌸",
		IsActive: true, CreatedAt: created,
		Expenses: []core.CardExpense{
			{ID: newID(), Description: "Academia", Category: "Saúde", Value: core.FromUnits(120), DueDate: day(20), Installment: "1/12"},
		},
	}

	working := core.WorkingMonth{
		Period: period,
		IncomeSources: []core.IncomeSource{
			{ID: newID(), Description: "Salário 1", Value: core.FromUnits(5000)},
			{ID: newID(), Description: "Salário 2", Value: core.FromUnits(2000)},
			{ID: newID(), Description: "Renda Extra", Value: core.FromUnits(500)},
		},
		Categories: cats,
		FixedExpenses: []core.FixedExpense{
			{ID: newID(), Description: "Aluguel", Category: "Contas", Value: core.FromUnits(1200), DueDate: day(5), Status: core.StatusPaid, ReferenceMonth: period.Label()},
			{ID: newID(), Description: "Condomínio", Category: "Contas", Value: core.FromUnits(300), DueDate: day(10), Status: core.StatusPaid, ReferenceMonth: period.Label()},
		},
		Cards: []core.CreditCard{nubank, bradesco},
	}

	return State{
		Working: working,
		History: []core.MonthlyData{
			demoMonth(newID, period.AddMonths(-2), nubank.ID, bradesco.ID,
				[3]int64{5000, 2000, 500}, [3]int64{1450, 750, 500}, 6200,
				"Mês estável, controle de gastos bom"),
			demoMonth(newID, period.AddMonths(-1), nubank.ID, bradesco.ID,
				[3]int64{5500, 2000, 500}, [3]int64{1600, 900, 300}, 7200,
				"Gastos acima do esperado, atenção para o próximo mês"),
		},
	}
}

func demoMonth(newID func() string, p core.Period, card1, card2 string, income, spent [3]int64, expenses int64, notes string) core.MonthlyData {
	day := func(d int) core.Date { return core.NewDate(p.Year, p.Month, d) }
	var totalIncome core.Money
	sources := []core.IncomeSource{
		{ID: newID(), Description: "Salário 1", Value: core.FromUnits(income[0])},
		{ID: newID(), Description: "Salário 2", Value: core.FromUnits(income[1])},
		{ID: newID(), Description: "Renda Extra", Value: core.FromUnits(income[2])},
	}
	for _, s := range sources {
		totalIncome = totalIncome.Add(s.Value)
	}
	total := core.FromUnits(expenses)
	return core.MonthlyData{
		ID:     newID(),
		Month:  p.Label(),
		Year:   p.Year,
		Period: p,
		Income: totalIncome, Expenses: total, Remaining: totalIncome.Sub(total),
		Categories: []core.ExpenseCategory{
			{ID: newID(), Category: "Contas", Estimated: core.FromUnits(1500), Spent: core.FromUnits(spent[0]), Color: "#E0E7FF"},
			{ID: newID(), Category: "Mercado", Estimated: core.FromUnits(800), Spent: core.FromUnits(spent[1]), Color: "#D1FAE5"},
			{ID: newID(), Category: "Lazer", Estimated: core.FromUnits(400), Spent: core.FromUnits(spent[2]), Color: "#FEF3C7"},
		},
		FixedExpenses: []core.FixedExpense{
			{ID: newID(), Description: "Aluguel", Category: "Contas", Value: core.FromUnits(1200), DueDate: day(5), Status: core.StatusPaid, ReferenceMonth: p.Label()},
		},
		CardExpenses: map[string][]core.CardExpense{
			card1: {{ID: newID(), Description: "Netflix", Category: "Streaming", Value: core.FromCents(4590), DueDate: day(15)}},
			card2: {},
		},
		IncomeSources: sources,
		ClosedAt:      p.Next().Start(time.UTC),
		Notes:         notes,
	}
}
