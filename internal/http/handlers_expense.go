package http

import (
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
)

func (s *Server) expenseRoutes() []Route {
	return []Route{
		{Path: "/api/expenses", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleQuickAddExpense)},
		{Path: "/api/fixed-expenses", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCreateFixedExpense)},
		{Path: "/api/fixed-expenses/:id", Method: http.MethodPatch, Handler: http.HandlerFunc(s.handleUpdateFixedExpense)},
		{Path: "/api/fixed-expenses/:id", Method: http.MethodDelete, Handler: http.HandlerFunc(s.handleDeleteFixedExpense)},
	}
}

// handleQuickAddExpense routes one expense to a category, the fixed list or
// a card depending on "kind".
func (s *Server) handleQuickAddExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	kind, err := ledger.ParseExpenseKind(p.Get("kind"))
	if err != nil {
		WriteError(w, ErrValidation, err.Error(), map[string]string{"field": "kind"})
		return
	}
	value, err := p.Money("value")
	if err != nil {
		writeParseError(w, err)
		return
	}
	due, err := p.Date("dueDate")
	if err != nil {
		writeParseError(w, err)
		return
	}

	id, err := s.ledger.AddExpense(r.Context(), ledger.ExpenseInput{
		Kind:        kind,
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Value:       value,
		CardID:      p.Get("cardId"),
		DueDate:     due,
		Installment: p.Get("installment"),
	})
	if err != nil {
		writeLedgerError(w, r, applog.OpAddExpense, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "kind": string(kind)})
}

func (s *Server) handleCreateFixedExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	value, err := p.Money("value")
	if err != nil {
		writeParseError(w, err)
		return
	}
	due, err := p.Date("dueDate")
	if err != nil {
		writeParseError(w, err)
		return
	}

	fe, err := s.ledger.AddFixedExpense(r.Context(), ledger.FixedExpenseInput{
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Value:       value,
		DueDate:     due,
		Status:      core.FixedExpenseStatus(p.Get("status")),
	})
	if err != nil {
		writeLedgerError(w, r, applog.OpAddExpense, err)
		return
	}
	writeJSON(w, http.StatusCreated, fe)
}

func (s *Server) handleUpdateFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	patch := ledger.FixedExpensePatch{
		Description: p.Optional("description"),
		Category:    p.Optional("category"),
	}
	var err error
	if patch.Value, err = p.OptionalMoney("value"); err != nil {
		writeParseError(w, err)
		return
	}
	if patch.DueDate, err = p.OptionalDate("dueDate"); err != nil {
		writeParseError(w, err)
		return
	}
	if status := p.Optional("status"); status != nil {
		st := core.FixedExpenseStatus(*status)
		patch.Status = &st
	}

	fe, err := s.ledger.UpdateFixedExpense(r.Context(), id, patch)
	if err != nil {
		writeLedgerError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, fe)
}

func (s *Server) handleDeleteFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.RemoveFixedExpense(r.Context(), id); err != nil {
		writeLedgerError(w, r, applog.OpDelete, err)
		return
	}
	noContent(w)
}
