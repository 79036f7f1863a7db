package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPaid    FixedExpenseStatus = "pago"
	StatusPending FixedExpenseStatus = "pendente"
	StatusOverdue FixedExpenseStatus = "atrasado"
)

const maxDescriptionLen = 200

type (
	FixedExpenseStatus string

	Date struct {
		time.Time
	}

	IncomeSource struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Value       Money  `json:"value"`
	}

	ExpenseCategory struct {
		ID        string `json:"id"`
		Category  string `json:"category"`
		Estimated Money  `json:"estimated"`
		Spent     Money  `json:"spent"`
		Color     string `json:"color"`
	}

	FixedExpense struct {
		ID             string             `json:"id"`
		Description    string             `json:"description"`
		Category       string             `json:"category"`
		Value          Money              `json:"value"`
		DueDate        Date               `json:"dueDate"`
		Status         FixedExpenseStatus `json:"status"`
		ReferenceMonth string             `json:"referenceMonth"`
	}

	CardExpense struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Value       Money  `json:"value"`
		DueDate     Date   `json:"dueDate"`
		Installment string `json:"installment,omitempty"` // e.g. "3/10"
	}

	CreditCard struct {
		ID        string        `json:"id"`
		Name      string        `json:"name"`
		Bank      string        `json:"bank"`
		Color     string        `json:"color"`
		Icon      string        `json:"icon"`
		Expenses  []CardExpense `json:"expenses"`
		IsActive  bool          `json:"isActive"`
		CreatedAt time.Time     `json:"createdAt"`
	}

	// MonthlyData is the immutable snapshot of a closed month.
	MonthlyData struct {
		ID            string                   `json:"id"`
		Month         string                   `json:"month"`
		Year          int                      `json:"year"`
		Period        Period                   `json:"period"`
		Income        Money                    `json:"income"`
		Expenses      Money                    `json:"expenses"`
		Remaining     Money                    `json:"remaining"`
		Categories    []ExpenseCategory        `json:"categories"`
		FixedExpenses []FixedExpense           `json:"fixedExpenses"`
		CardExpenses  map[string][]CardExpense `json:"cardExpenses"`
		IncomeSources []IncomeSource           `json:"incomeSources"`
		ClosedAt      time.Time                `json:"closedAt"`
		Notes         string                   `json:"notes,omitempty"`
	}

	// WorkingMonth is the mutable state of the month being tracked.
	WorkingMonth struct {
		Period        Period            `json:"period"`
		IncomeSources []IncomeSource    `json:"incomeSources"`
		Categories    []ExpenseCategory `json:"categories"`
		FixedExpenses []FixedExpense    `json:"fixedExpenses"`
		Cards         []CreditCard      `json:"cards"`
		Notes         string            `json:"notes"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyCardName    = errors.New("empty card name")
	ErrEmptyBank        = errors.New("empty bank")
	ErrCardRequired     = errors.New("card selection required")
	ErrInvalidStatus    = errors.New("invalid fixed expense status")
	ErrInvalidDate      = errors.New("invalid date")
	ErrDescriptionLong  = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
)

func (s FixedExpenseStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusPending, StatusOverdue:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > 10 {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func validateDescription(desc string) error {
	if strings.TrimSpace(desc) == "" {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func (s IncomeSource) Validate() error {
	if err := validateDescription(s.Description); err != nil {
		return err
	}
	if s.Value.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c ExpenseCategory) Validate() error {
	if strings.TrimSpace(c.Category) == "" {
		return ErrEmptyCategory
	}
	if c.Estimated.Cents < 0 || c.Spent.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e FixedExpense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Value.Validate(); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (e CardExpense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return e.Value.Validate()
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCardName
	}
	if strings.TrimSpace(c.Bank) == "" {
		return ErrEmptyBank
	}
	return nil
}

// Total sums the card's expenses.
func (c CreditCard) Total() Money {
	var total Money
	for _, e := range c.Expenses {
		total = total.Add(e.Value)
	}
	return total
}

// Clone returns a copy that shares no slices with w.
func (w WorkingMonth) Clone() WorkingMonth {
	out := w
	out.IncomeSources = cloneSlice(w.IncomeSources)
	out.Categories = cloneSlice(w.Categories)
	out.FixedExpenses = cloneSlice(w.FixedExpenses)
	out.Cards = make([]CreditCard, len(w.Cards))
	for i, c := range w.Cards {
		c.Expenses = cloneSlice(c.Expenses)
		out.Cards[i] = c
	}
	return out
}

// Clone returns a copy that shares no slices or maps with m.
func (m MonthlyData) Clone() MonthlyData {
	out := m
	out.Categories = cloneSlice(m.Categories)
	out.FixedExpenses = cloneSlice(m.FixedExpenses)
	out.IncomeSources = cloneSlice(m.IncomeSources)
	out.CardExpenses = make(map[string][]CardExpense, len(m.CardExpenses))
	for id, list := range m.CardExpenses {
		out.CardExpenses[id] = cloneSlice(list)
	}
	return out
}

// cloneSlice never returns nil so snapshots always serialize as arrays.
func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
