package http

import (
	"net/http"
	"strings"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
)

func (s *Server) ledgerRoutes() []Route {
	return []Route{
		{Path: "/api/ledger", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleGetLedger)},
		{Path: "/api/summary", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleGetSummary)},
		{Path: "/api/notes", Method: http.MethodPut, Handler: http.HandlerFunc(s.handleSetNotes)},
	}
}

func (s *Server) incomeRoutes() []Route {
	return []Route{
		{Path: "/api/incomes", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCreateIncome)},
		{Path: "/api/incomes/:id", Method: http.MethodPatch, Handler: http.HandlerFunc(s.handleUpdateIncome)},
		{Path: "/api/incomes/:id", Method: http.MethodDelete, Handler: http.HandlerFunc(s.handleDeleteIncome)},
	}
}

func (s *Server) categoryRoutes() []Route {
	return []Route{
		{Path: "/api/categories", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCreateCategory)},
		{Path: "/api/categories/:id", Method: http.MethodPatch, Handler: http.HandlerFunc(s.handleUpdateCategory)},
	}
}

func (s *Server) settingsRoutes() []Route {
	return []Route{
		{Path: "/api/settings", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleGetSettings)},
		{Path: "/api/settings", Method: http.MethodPut, Handler: http.HandlerFunc(s.handleUpdateSettings)},
	}
}

type ledgerResponse struct {
	Period   core.Period       `json:"period"`
	Label    string            `json:"label"`
	Revision uint64            `json:"revision"`
	Working  core.WorkingMonth `json:"working"`
	Settings core.Settings     `json:"settings"`
	Closed   int               `json:"closedMonths"`
	Due      []ledger.DueItem  `json:"due"`
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	working := s.ledger.Working()
	writeJSON(w, http.StatusOK, ledgerResponse{
		Period:   working.Period,
		Label:    working.Period.Label(),
		Revision: s.ledger.Revision(),
		Working:  working,
		Settings: s.ledger.Settings(),
		Closed:   len(s.ledger.History()),
		Due:      ledger.DueItems(working, s.ledger.Now()),
	})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Summary())
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	notes := p.Get("notes")
	if err := s.ledger.SetNotes(r.Context(), notes); err != nil {
		writeLedgerError(w, r, "set_notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notes": notes})
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	value, err := p.Money("value")
	if err != nil {
		writeParseError(w, err)
		return
	}

	src, err := s.ledger.RecordIncome(r.Context(), p.Get("description"), value)
	if err != nil {
		writeLedgerError(w, r, applog.OpRecordIncome, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
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

	if err := s.ledger.UpdateIncome(r.Context(), id, value); err != nil {
		writeLedgerError(w, r, applog.OpUpdate, err)
		return
	}
	for _, src := range s.ledger.Working().IncomeSources {
		if src.ID == id {
			writeJSON(w, http.StatusOK, src)
			return
		}
	}
	noContent(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.RemoveIncome(r.Context(), id); err != nil {
		writeLedgerError(w, r, applog.OpDelete, err)
		return
	}
	noContent(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	name := p.Get("category")
	if name == "" {
		name = p.Get("name")
	}
	estimated := core.Money{}
	if p.Has("estimated") {
		m, err := p.Money("estimated")
		if err != nil {
			writeParseError(w, err)
			return
		}
		estimated = m
	}

	cat, err := s.ledger.AddCategory(r.Context(), name, estimated, p.Get("color"))
	if err != nil {
		writeLedgerError(w, r, "add_category", err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// handleUpdateCategory sets the spent and/or estimated amount of a category.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	spent, err := p.OptionalMoney("spent")
	if err != nil {
		writeParseError(w, err)
		return
	}
	estimated, err := p.OptionalMoney("estimated")
	if err != nil {
		writeParseError(w, err)
		return
	}
	if spent == nil && estimated == nil {
		WriteError(w, ErrMissingRequiredData, "spent or estimated is required", nil)
		return
	}

	c, err := s.ledger.UpdateCategory(r.Context(), id, ledger.CategoryPatch{Spent: spent, Estimated: estimated})
	if err != nil {
		writeLedgerError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Settings())
}

type settingsPatch struct {
	Currency       *string                  `json:"currency"`
	MonthStartDay  *int                     `json:"monthStartDay"`
	AlertThreshold *int                     `json:"alertThreshold"`
	Categories     *[]core.CategoryTemplate `json:"categories"`
}

// handleUpdateSettings applies the fields present in the body; omitted ones
// keep their values.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := NewRequestBodyParser(r).Decode(&patch); err != nil {
		writeParseError(w, err)
		return
	}

	settings := s.ledger.Settings()
	if patch.Currency != nil {
		settings.Currency = strings.ToUpper(strings.TrimSpace(*patch.Currency))
	}
	if patch.MonthStartDay != nil {
		settings.MonthStartDay = *patch.MonthStartDay
	}
	if patch.AlertThreshold != nil {
		settings.AlertThreshold = *patch.AlertThreshold
	}
	if patch.Categories != nil {
		settings.Categories = *patch.Categories
	}

	if err := s.ledger.UpdateSettings(settings); err != nil {
		writeLedgerError(w, r, "update_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Settings())
}
