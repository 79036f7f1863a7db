package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFixedExpenseValidate(t *testing.T) {
	good := FixedExpense{
		Description: "Aluguel",
		Category:    "Contas",
		Value:       FromUnits(1200),
		DueDate:     NewDate(2024, time.December, 5),
		Status:      StatusPending,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*FixedExpense)
		want   error
	}{
		{"empty description", func(e *FixedExpense) { e.Description = "  " }, ErrEmptyDescription},
		{"empty category", func(e *FixedExpense) { e.Category = "" }, ErrEmptyCategory},
		{"zero value", func(e *FixedExpense) { e.Value = Money{} }, ErrInvalidAmount},
		{"bad status", func(e *FixedExpense) { e.Status = "quitado" }, ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCardExpenseValidate(t *testing.T) {
	bads := []CardExpense{
		{Description: "", Category: "Streaming", Value: FromCents(4590)},
		{Description: "Netflix", Category: "", Value: FromCents(4590)},
		{Description: "Netflix", Category: "Streaming", Value: FromCents(-1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCreditCardValidateAndTotal(t *testing.T) {
	if err := (CreditCard{Name: "Nubank"}).Validate(); !errors.Is(err, ErrEmptyBank) {
		t.Fatalf("expected ErrEmptyBank, got %v", err)
	}
	if err := (CreditCard{Bank: "Nubank"}).Validate(); !errors.Is(err, ErrEmptyCardName) {
		t.Fatalf("expected ErrEmptyCardName, got %v", err)
	}
	c := CreditCard{Name: "Nubank", Bank: "Nubank", Expenses: []CardExpense{
		{Value: FromCents(4590)}, {Value: FromCents(8950)},
	}}
	if got := c.Total(); got.Cents != 13540 {
		t.Fatalf("total = %d, want 13540", got.Cents)
	}
}

func TestWorkingMonthCloneIsDeep(t *testing.T) {
	w := WorkingMonth{
		Categories: []ExpenseCategory{{ID: "c1", Category: "Mercado", Spent: FromUnits(10)}},
		Cards:      []CreditCard{{ID: "k1", Expenses: []CardExpense{{ID: "e1", Value: FromUnits(5)}}}},
	}
	cp := w.Clone()
	cp.Categories[0].Spent = Money{}
	cp.Cards[0].Expenses[0].Value = Money{}

	if w.Categories[0].Spent.Cents != 1000 {
		t.Fatalf("clone shares categories with original")
	}
	if w.Cards[0].Expenses[0].Value.Cents != 500 {
		t.Fatalf("clone shares card expenses with original")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, time.December, 15))
	if err != nil || string(b) != `"2024-12-15"` {
		t.Fatalf("marshal = %s (err=%v)", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-01-01T10:00:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal RFC3339: %v", err)
	}
	if d.String() != "2024-01-01" {
		t.Fatalf("unmarshal RFC3339 = %s", d)
	}
	if err := json.Unmarshal([]byte(`"15/12/2024"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCategoryStatus(t *testing.T) {
	cases := []struct {
		spent, estimated int64
		status, report   SpendingStatus
	}{
		{0, 100, SpendingNone, SpendingNone},
		{150, 100, SpendingOver, ReportOverspent},
		{100, 100, SpendingWithin, SpendingWithin},
	}
	for _, tc := range cases {
		c := ExpenseCategory{Spent: FromUnits(tc.spent), Estimated: FromUnits(tc.estimated)}
		if got := c.Status(); got != tc.status {
			t.Errorf("Status(%d/%d) = %s, want %s", tc.spent, tc.estimated, got, tc.status)
		}
		if got := c.ReportStatus(); got != tc.report {
			t.Errorf("ReportStatus(%d/%d) = %s, want %s", tc.spent, tc.estimated, got, tc.report)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	s := DefaultSettings()
	s.AlertThreshold = 0
	if err := s.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	s = DefaultSettings()
	s.Categories = append(s.Categories, CategoryTemplate{Name: "mercado"})
	if err := s.Validate(); !errors.Is(err, ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
}
