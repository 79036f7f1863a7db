package http

import (
	"fmt"
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
	"orcamento/internal/report"
)

func (s *Server) historyRoutes() []Route {
	return []Route{
		{Path: "/api/close-month", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleCloseMonth)},
		{Path: "/api/history", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleListHistory)},
		{Path: "/api/history/:id", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleGetMonth)},
		{Path: "/api/history/:id", Method: http.MethodDelete, Handler: http.HandlerFunc(s.handleDeleteMonth)},
	}
}

func (s *Server) exportRoutes() []Route {
	return []Route{
		{Path: "/api/export/report", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleExportReport)},
		{Path: "/api/export/history", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleExportHistory)},
	}
}

func (s *Server) maintenanceRoutes() []Route {
	if s.sweeper == nil {
		return nil
	}
	return []Route{
		{Path: "/api/maintenance/overdue-sweep", Method: http.MethodPost, Handler: http.HandlerFunc(s.handleOverdueSweep)},
		{Path: "/api/maintenance/overdue-sweep", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleOverdueSweepStatus)},
	}
}

// handleCloseMonth archives the working month. A "notes" field in the body
// replaces the draft notes for this close.
func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	var (
		snap core.MonthlyData
		err  error
	)
	if p.Has("notes") {
		snap, err = s.ledger.CloseMonthWithNotes(r.Context(), p.Get("notes"))
	} else {
		snap, err = s.ledger.CloseMonth(r.Context())
	}
	if err != nil {
		writeLedgerError(w, r, applog.OpCloseMonth, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogMonthClosed(r.Context(), snap.ID, snap.Month, snap.Income.Cents, snap.Expenses.Cents, snap.Remaining.Cents)

	next := s.ledger.Period()
	writeJSON(w, http.StatusCreated, map[string]any{
		"closed":     snap,
		"nextPeriod": next,
		"nextLabel":  next.Label(),
	})
}

type historyResponse struct {
	Query  string                `json:"query,omitempty"`
	Filter ledger.HistoryFilter  `json:"filter"`
	Total  int                   `json:"total"`
	Months []core.MonthlyData    `json:"months"`
	Series []ledger.HistoryPoint `json:"series"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := ledger.ParseHistoryFilter(q.Get("filter"))
	if err != nil {
		WriteError(w, ErrValidation, err.Error(), map[string]string{"field": "filter"})
		return
	}
	query := sanitizeInput(q.Get("q"))

	months := s.ledger.SearchHistory(query, filter)
	if months == nil {
		months = []core.MonthlyData{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Query:  query,
		Filter: filter,
		Total:  len(months),
		Months: months,
		Series: ledger.HistorySeries(months),
	})
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	m, err := s.ledger.Month(id)
	if err != nil {
		writeLedgerError(w, r, "get_month", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMonth removes a closed month. Requires confirm=true.
func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	if !requireConfirmation(w, r, "deleting a closed month") {
		return
	}
	if err := s.ledger.DeleteHistoricalMonth(r.Context(), id); err != nil {
		writeLedgerError(w, r, applog.OpDeleteMonth, err)
		return
	}
	noContent(w)
}

// Export documents only change with the ledger revision and the day they
// are generated on, so both go into the cache key.
func (s *Server) exportKey(kind string) string {
	return fmt.Sprintf("%s:%d:%s", kind, s.ledger.Revision(), s.ledger.Now().Format("2006-01-02"))
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	now := s.ledger.Now()
	doc, hit, err := s.exports.GetOrLoad(s.exportKey("report"), func() ([]byte, error) {
		return report.Marshal(report.BuildReport(s.ledger.Working(), s.ledger.History(), now))
	})
	if err != nil {
		writeLedgerError(w, r, applog.OpExport, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Report export served", "cache_hit", hit)

	NewResponse().
		Attachment(report.ReportFilename(s.ledger.Period())).
		Raw(doc).
		Write(w)
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	now := s.ledger.Now()
	doc, hit, err := s.exports.GetOrLoad(s.exportKey("history"), func() ([]byte, error) {
		return report.Marshal(report.BuildHistory(s.ledger.History(), now))
	})
	if err != nil {
		writeLedgerError(w, r, applog.OpExport, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "History export served", "cache_hit", hit)

	NewResponse().
		Attachment(report.HistoryFilename(now)).
		Raw(doc).
		Write(w)
}

func (s *Server) handleOverdueSweep(w http.ResponseWriter, r *http.Request) {
	marked, err := s.sweeper.TriggerManualSweep(r.Context())
	if err != nil {
		writeLedgerError(w, r, applog.OpSweep, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

func (s *Server) handleOverdueSweepStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sweeper.Status())
}
