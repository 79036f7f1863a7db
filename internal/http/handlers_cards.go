package http

import (
	"net/http"

	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
)

func (s *Server) cardRoutes() []Route {
	return []Route{
		{Path: "/api/cards", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCreateCard)},
		{Path: "/api/cards/:id/toggle", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleToggleCard)},
		{Path: "/api/cards/:id", Method: http.MethodDelete, Handler: http.HandlerFunc(s.handleDeleteCard)},
		{Path: "/api/cards/:id/expenses", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCreateCardExpense)},
		{Path: "/api/cards/:id/expenses/:expenseID", Method: http.MethodPatch, Handler: http.HandlerFunc(s.handleUpdateCardExpense)},
		{Path: "/api/cards/:id/expenses/:expenseID", Method: http.MethodDelete, Handler: http.HandlerFunc(s.handleDeleteCardExpense)},
	}
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	card, err := s.ledger.AddCard(r.Context(), ledger.CardInput{
		Name:  p.Get("name"),
		Bank:  p.Get("bank"),
		Color: p.Get("color"),
		Icon:  p.Get("icon"),
	})
	if err != nil {
		writeLedgerError(w, r, "add_card", err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleToggleCard(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	active, err := s.ledger.ToggleCard(r.Context(), id)
	if err != nil {
		writeLedgerError(w, r, "toggle_card", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isActive": active})
}

// handleDeleteCard removes a card and every expense on it. Requires confirm=true.
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	if !requireConfirmation(w, r, "deleting a card and its expenses") {
		return
	}
	if err := s.ledger.DeleteCard(r.Context(), id); err != nil {
		writeLedgerError(w, r, applog.OpDelete, err)
		return
	}
	noContent(w)
}

func (s *Server) handleCreateCardExpense(w http.ResponseWriter, r *http.Request) {
	cardID, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
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

	exp, err := s.ledger.AddCardExpense(r.Context(), cardID, ledger.CardExpenseInput{
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Value:       value,
		DueDate:     due,
		Installment: p.Get("installment"),
	})
	if err != nil {
		writeLedgerError(w, r, applog.OpAddExpense, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleUpdateCardExpense(w http.ResponseWriter, r *http.Request) {
	cardID, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	id, ok := requireParam(w, r, "expenseID")
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	patch := ledger.CardExpensePatch{
		Description: p.Optional("description"),
		Category:    p.Optional("category"),
		Installment: p.Optional("installment"),
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

	exp, err := s.ledger.UpdateCardExpense(r.Context(), cardID, id, patch)
	if err != nil {
		writeLedgerError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleDeleteCardExpense(w http.ResponseWriter, r *http.Request) {
	cardID, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	id, ok := requireParam(w, r, "expenseID")
	if !ok {
		return
	}
	if err := s.ledger.RemoveCardExpense(r.Context(), cardID, id); err != nil {
		writeLedgerError(w, r, applog.OpDelete, err)
		return
	}
	noContent(w)
}
