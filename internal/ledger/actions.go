package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"orcamento/internal/core"
)

// ExpenseKind selects where a quick-add expense lands.
type ExpenseKind string

const (
	KindCategory ExpenseKind = "category"
	KindFixed    ExpenseKind = "fixed"
	KindCard     ExpenseKind = "card"
)

var ErrInvalidExpenseKind = errors.New("invalid expense kind")

type (
	ExpenseInput struct {
		Kind        ExpenseKind
		Description string
		Category    string
		Value       core.Money
		CardID      string
		DueDate     core.Date
		Installment string
	}

	FixedExpenseInput struct {
		Description string
		Category    string
		Value       core.Money
		DueDate     core.Date
		Status      core.FixedExpenseStatus
	}

	FixedExpensePatch struct {
		Description *string
		Category    *string
		Value       *core.Money
		DueDate     *core.Date
		Status      *core.FixedExpenseStatus
	}

	CardInput struct {
		Name  string
		Bank  string
		Color string
		Icon  string
	}

	CardExpenseInput struct {
		Description string
		Category    string
		Value       core.Money
		DueDate     core.Date
		Installment string
	}

	CardExpensePatch struct {
		Description *string
		Category    *string
		Value       *core.Money
		DueDate     *core.Date
		Installment *string
	}
)

func ParseExpenseKind(s string) (ExpenseKind, error) {
	switch k := ExpenseKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCategory, KindFixed, KindCard:
		return k, nil
	case "":
		return KindCategory, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidExpenseKind, s)
}

// RecordIncome adds an income source.
func (m *Manager) RecordIncome(ctx context.Context, description string, value core.Money) (core.IncomeSource, error) {
	src := core.IncomeSource{ID: m.newID(), Description: strings.TrimSpace(description), Value: value}
	if err := src.Validate(); err != nil {
		return core.IncomeSource{}, err
	}
	err := m.update(ctx, "record_income", func(w *core.WorkingMonth) error {
		w.IncomeSources = append(w.IncomeSources, src)
		return nil
	})
	return src, err
}

// UpdateIncome sets the value of an income source.
func (m *Manager) UpdateIncome(ctx context.Context, id string, value core.Money) error {
	if value.Cents < 0 {
		return core.ErrInvalidAmount
	}
	return m.update(ctx, "update_income", func(w *core.WorkingMonth) error {
		i := slices.IndexFunc(w.IncomeSources, func(s core.IncomeSource) bool { return s.ID == id })
		if i < 0 {
			return ErrIncomeNotFound
		}
		w.IncomeSources[i].Value = value
		return nil
	})
}

func (m *Manager) RemoveIncome(ctx context.Context, id string) error {
	return m.update(ctx, "remove_income", func(w *core.WorkingMonth) error {
		i := slices.IndexFunc(w.IncomeSources, func(s core.IncomeSource) bool { return s.ID == id })
		if i < 0 {
			return ErrIncomeNotFound
		}
		w.IncomeSources = slices.Delete(w.IncomeSources, i, i+1)
		return nil
	})
}

// AddCategory adds a budget category to the working month's template.
func (m *Manager) AddCategory(ctx context.Context, name string, estimated core.Money, color string) (core.ExpenseCategory, error) {
	cat := core.ExpenseCategory{
		ID:        m.newID(),
		Category:  strings.TrimSpace(name),
		Estimated: estimated,
		Color:     colorOr(color, core.DefaultColor),
	}
	if err := cat.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	err := m.update(ctx, "add_category", func(w *core.WorkingMonth) error {
		if findCategoryByName(w.Categories, cat.Category) >= 0 {
			return core.ErrDuplicateCategory
		}
		w.Categories = append(w.Categories, cat)
		return nil
	})
	return cat, err
}

// CategoryPatch changes the fields that are set.
type CategoryPatch struct {
	Spent     *core.Money
	Estimated *core.Money
}

// UpdateCategory applies p to a category in a single commit.
func (m *Manager) UpdateCategory(ctx context.Context, id string, p CategoryPatch) (core.ExpenseCategory, error) {
	if (p.Spent != nil && p.Spent.Cents < 0) || (p.Estimated != nil && p.Estimated.Cents < 0) {
		return core.ExpenseCategory{}, core.ErrInvalidAmount
	}
	var out core.ExpenseCategory
	err := m.update(ctx, "update_category", func(w *core.WorkingMonth) error {
		i := findCategory(w.Categories, id)
		if i < 0 {
			return ErrCategoryNotFound
		}
		if p.Spent != nil {
			w.Categories[i].Spent = *p.Spent
		}
		if p.Estimated != nil {
			w.Categories[i].Estimated = *p.Estimated
		}
		out = w.Categories[i]
		return nil
	})
	return out, err
}

// AddFixedExpense records a bill for the working month. Status defaults to pendente.
func (m *Manager) AddFixedExpense(ctx context.Context, in FixedExpenseInput) (core.FixedExpense, error) {
	if in.Status == "" {
		in.Status = core.StatusPending
	}
	fe := core.FixedExpense{
		ID:          m.newID(),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Value:       in.Value,
		DueDate:     in.DueDate,
		Status:      in.Status,
	}
	if err := fe.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	err := m.update(ctx, "add_fixed_expense", func(w *core.WorkingMonth) error {
		// The bill belongs to the month it lands in, even if a close
		// committed since the caller read the period.
		fe.ReferenceMonth = w.Period.Label()
		w.FixedExpenses = append(w.FixedExpenses, fe)
		return nil
	})
	return fe, err
}

func (m *Manager) UpdateFixedExpense(ctx context.Context, id string, p FixedExpensePatch) (core.FixedExpense, error) {
	var out core.FixedExpense
	err := m.update(ctx, "update_fixed_expense", func(w *core.WorkingMonth) error {
		i := slices.IndexFunc(w.FixedExpenses, func(e core.FixedExpense) bool { return e.ID == id })
		if i < 0 {
			return ErrFixedExpenseNotFound
		}
		fe := w.FixedExpenses[i]
		if p.Description != nil {
			fe.Description = strings.TrimSpace(*p.Description)
		}
		if p.Category != nil {
			fe.Category = strings.TrimSpace(*p.Category)
		}
		if p.Value != nil {
			fe.Value = *p.Value
		}
		if p.DueDate != nil {
			fe.DueDate = *p.DueDate
		}
		if p.Status != nil {
			fe.Status = *p.Status
		}
		if err := fe.Validate(); err != nil {
			return err
		}
		w.FixedExpenses[i] = fe
		out = fe
		return nil
	})
	return out, err
}

func (m *Manager) RemoveFixedExpense(ctx context.Context, id string) error {
	return m.update(ctx, "remove_fixed_expense", func(w *core.WorkingMonth) error {
		i := slices.IndexFunc(w.FixedExpenses, func(e core.FixedExpense) bool { return e.ID == id })
		if i < 0 {
			return ErrFixedExpenseNotFound
		}
		w.FixedExpenses = slices.Delete(w.FixedExpenses, i, i+1)
		return nil
	})
}

// AddCard registers an active credit card.
func (m *Manager) AddCard(ctx context.Context, in CardInput) (core.CreditCard, error) {
	card := core.CreditCard{
		ID:        m.newID(),
		Name:      strings.TrimSpace(in.Name),
		Bank:      strings.TrimSpace(in.Bank),
		Color:     colorOr(in.Color, core.DefaultCardColor),
		Icon:      colorOr(in.Icon, core.DefaultCardIcon),
		Expenses:  []core.CardExpense{},
		IsActive:  true,
		CreatedAt: m.now().UTC(),
	}
	if err := card.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	err := m.update(ctx, "add_card", func(w *core.WorkingMonth) error {
		w.Cards = append(w.Cards, card)
		return nil
	})
	return card, err
}

// ToggleCard flips a card between active and inactive and returns the new state.
func (m *Manager) ToggleCard(ctx context.Context, id string) (bool, error) {
	var active bool
	err := m.update(ctx, "toggle_card", func(w *core.WorkingMonth) error {
		i := findCard(w.Cards, id)
		if i < 0 {
			return ErrCardNotFound
		}
		w.Cards[i].IsActive = !w.Cards[i].IsActive
		active = w.Cards[i].IsActive
		return nil
	})
	return active, err
}

// DeleteCard removes a card and every expense on it. Callers confirm first.
func (m *Manager) DeleteCard(ctx context.Context, id string) error {
	return m.update(ctx, "delete_card", func(w *core.WorkingMonth) error {
		i := findCard(w.Cards, id)
		if i < 0 {
			return ErrCardNotFound
		}
		w.Cards = slices.Delete(w.Cards, i, i+1)
		return nil
	})
}

// AddCardExpense appends an expense to a card.
func (m *Manager) AddCardExpense(ctx context.Context, cardID string, in CardExpenseInput) (core.CardExpense, error) {
	if strings.TrimSpace(cardID) == "" {
		return core.CardExpense{}, core.ErrCardRequired
	}
	exp := core.CardExpense{
		ID:          m.newID(),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Value:       in.Value,
		DueDate:     in.DueDate,
		Installment: strings.TrimSpace(in.Installment),
	}
	if err := exp.Validate(); err != nil {
		return core.CardExpense{}, err
	}
	err := m.update(ctx, "add_card_expense", func(w *core.WorkingMonth) error {
		i := findCard(w.Cards, cardID)
		if i < 0 {
			return ErrCardNotFound
		}
		w.Cards[i].Expenses = append(w.Cards[i].Expenses, exp)
		return nil
	})
	return exp, err
}

func (m *Manager) UpdateCardExpense(ctx context.Context, cardID, id string, p CardExpensePatch) (core.CardExpense, error) {
	var out core.CardExpense
	err := m.update(ctx, "update_card_expense", func(w *core.WorkingMonth) error {
		ci := findCard(w.Cards, cardID)
		if ci < 0 {
			return ErrCardNotFound
		}
		list := w.Cards[ci].Expenses
		i := slices.IndexFunc(list, func(e core.CardExpense) bool { return e.ID == id })
		if i < 0 {
			return ErrCardExpenseNotFound
		}
		exp := list[i]
		if p.Description != nil {
			exp.Description = strings.TrimSpace(*p.Description)
		}
		if p.Category != nil {
			exp.Category = strings.TrimSpace(*p.Category)
		}
		if p.Value != nil {
			exp.Value = *p.Value
		}
		if p.DueDate != nil {
			exp.DueDate = *p.DueDate
		}
		if p.Installment != nil {
			exp.Installment = strings.TrimSpace(*p.Installment)
		}
		if err := exp.Validate(); err != nil {
			return err
		}
		list[i] = exp
		out = exp
		return nil
	})
	return out, err
}

func (m *Manager) RemoveCardExpense(ctx context.Context, cardID, id string) error {
	return m.update(ctx, "remove_card_expense", func(w *core.WorkingMonth) error {
		ci := findCard(w.Cards, cardID)
		if ci < 0 {
			return ErrCardNotFound
		}
		list := w.Cards[ci].Expenses
		i := slices.IndexFunc(list, func(e core.CardExpense) bool { return e.ID == id })
		if i < 0 {
			return ErrCardExpenseNotFound
		}
		w.Cards[ci].Expenses = slices.Delete(list, i, i+1)
		return nil
	})
}

// AddExpense is the quick-add entry point. It returns the id of the category,
// fixed expense or card expense that received the amount.
func (m *Manager) AddExpense(ctx context.Context, in ExpenseInput) (string, error) {
	if strings.TrimSpace(in.Description) == "" {
		return "", core.ErrEmptyDescription
	}
	if strings.TrimSpace(in.Category) == "" {
		return "", core.ErrEmptyCategory
	}
	if err := in.Value.Validate(); err != nil {
		return "", err
	}

	switch in.Kind {
	case KindCategory, "":
		var id string
		err := m.update(ctx, "add_category_expense", func(w *core.WorkingMonth) error {
			i := findCategoryByName(w.Categories, in.Category)
			if i < 0 {
				return ErrCategoryNotFound
			}
			w.Categories[i].Spent = w.Categories[i].Spent.Add(in.Value)
			id = w.Categories[i].ID
			return nil
		})
		return id, err
	case KindFixed:
		due := in.DueDate
		if due.IsZero() {
			due = core.DateOf(m.now())
		}
		fe, err := m.AddFixedExpense(ctx, FixedExpenseInput{
			Description: in.Description,
			Category:    in.Category,
			Value:       in.Value,
			DueDate:     due,
			Status:      core.StatusPending,
		})
		return fe.ID, err
	case KindCard:
		if strings.TrimSpace(in.CardID) == "" {
			return "", core.ErrCardRequired
		}
		due := in.DueDate
		if due.IsZero() {
			due = core.DateOf(m.now())
		}
		exp, err := m.AddCardExpense(ctx, in.CardID, CardExpenseInput{
			Description: in.Description,
			Category:    in.Category,
			Value:       in.Value,
			DueDate:     due,
			Installment: in.Installment,
		})
		return exp.ID, err
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidExpenseKind, in.Kind)
}

// SetNotes stores the draft notes attached to the next close.
func (m *Manager) SetNotes(ctx context.Context, notes string) error {
	return m.update(ctx, "set_notes", func(w *core.WorkingMonth) error {
		w.Notes = strings.TrimSpace(notes)
		return nil
	})
}

// MarkOverdue flags pending fixed expenses whose due date has passed.
// It returns how many changed.
func (m *Manager) MarkOverdue(ctx context.Context) (int, error) {
	if err := m.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "Overdue sweep runs on cached ledger", "error", err)
	}
	now := m.now()
	m.mu.RLock()
	pending := 0
	for _, fe := range m.working.FixedExpenses {
		if fe.IsOverdue(now) {
			pending++
		}
	}
	m.mu.RUnlock()
	if pending == 0 {
		return 0, nil
	}

	changed := 0
	err := m.update(ctx, "mark_overdue", func(w *core.WorkingMonth) error {
		changed = 0
		for i, fe := range w.FixedExpenses {
			if fe.IsOverdue(now) {
				w.FixedExpenses[i].Status = core.StatusOverdue
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func findCategory(cats []core.ExpenseCategory, id string) int {
	return slices.IndexFunc(cats, func(c core.ExpenseCategory) bool { return c.ID == id })
}

func findCategoryByName(cats []core.ExpenseCategory, name string) int {
	return slices.IndexFunc(cats, func(c core.ExpenseCategory) bool { return sameName(c.Category, name) })
}

func findCard(cards []core.CreditCard, id string) int {
	return slices.IndexFunc(cards, func(c core.CreditCard) bool { return c.ID == id })
}
