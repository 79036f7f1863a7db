package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/services"
	"orcamento/internal/storage/memory"
)

var testNow = time.Date(2024, time.December, 20, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	n := 0
	m, err := ledger.New(context.Background(), nil,
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	require.NoError(t, err)

	srv := NewServer(":0", services.NewLedgerService(m, nil), opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "metrics")

	rec = do(t, srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReportsFailingCheck(t *testing.T) {
	srv := newTestServer(t, WithReadinessCheck(func(context.Context) error {
		return errors.New("database is closed")
	}))

	rec := do(t, srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, ErrUnavailable, decode(t, rec)["code"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode(t, rec)
	assert.Equal(t, "dezembro de 2024", body["label"])
}

func TestIncomeLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/incomes", `{"description":"Salário","value":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Salário", created["description"])

	rec = do(t, srv, http.MethodPatch, "/api/incomes/"+id, `{"value":"5500,50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5500.5, decode(t, rec)["value"])

	rec = do(t, srv, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/incomes/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/incomes/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrNotFound, decode(t, rec)["code"])
}

func TestLedgerListsDueItems(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/fixed-expenses",
		`{"description":"Aluguel","category":"Moradia","value":1200,"dueDate":"2024-12-18"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodPost, "/api/fixed-expenses",
		`{"description":"Luz","category":"Contas","value":90,"dueDate":"2024-12-10","status":"pago"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/cards", `{"name":"Roxinho","bank":"Nubank"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cardID, _ := decode(t, rec)["id"].(string)
	rec = do(t, srv, http.MethodPost, "/api/cards/"+cardID+"/expenses",
		`{"description":"Mercado","category":"Alimentação","value":"230,40","dueDate":"2024-12-21"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Due []ledger.DueItem `json:"due"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Due, 2, "paid bills are not listed")
	assert.Equal(t, "Aluguel", body.Due[0].Description)
	assert.Equal(t, ledger.DueKindFixed, body.Due[0].Kind)
	assert.Equal(t, "Atrasado (2 dias)", body.Due[0].DueLabel)
	assert.Equal(t, core.UrgencyOverdue, body.Due[0].Urgency)
	assert.Equal(t, "Mercado", body.Due[1].Description)
	assert.Equal(t, cardID, body.Due[1].CardID)
	assert.Equal(t, "Vence amanhã", body.Due[1].DueLabel)
	assert.Equal(t, core.UrgencySoon, body.Due[1].Urgency)
}

func TestCategoryPatchSetsBothFields(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/ledger", "")
	var body struct {
		Working core.WorkingMonth `json:"working"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	id := body.Working.Categories[0].ID
	revision := srv.ledger.Revision()

	rec = do(t, srv, http.MethodPatch, "/api/categories/"+id, `{"spent":"120,50","estimated":400}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.Equal(t, 120.5, got["spent"])
	assert.Equal(t, 400.0, got["estimated"])
	assert.Equal(t, revision+1, srv.ledger.Revision())
}

func TestServerPicksUpWritesFromAnotherLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := ledger.WithClock(func() time.Time { return testNow })

	m, err := ledger.New(ctx, store, clock)
	require.NoError(t, err)
	srv := NewServer(":0", services.NewLedgerService(m, nil))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	other, err := ledger.New(ctx, store, clock)
	require.NoError(t, err)
	_, err = other.CloseMonthWithNotes(ctx, "fechado em outro processo")
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "janeiro de 2025", body["label"])
	assert.Equal(t, 1.0, body["closedMonths"])

	// Refreshed on every request, so the second close is based on January.
	rec = do(t, srv, http.MethodPost, "/api/close-month", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st, _, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.History, 2)
	assert.Equal(t, "fechado em outro processo", st.History[0].Notes)
	assert.Equal(t, "janeiro de 2025", st.History[1].Month)
}

func TestStaleCloseAnswersConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := ledger.WithClock(func() time.Time { return testNow })

	m, err := ledger.New(ctx, store, clock)
	require.NoError(t, err)
	other, err := ledger.New(ctx, store, clock)
	require.NoError(t, err)
	_, err = other.CloseMonth(ctx)
	require.NoError(t, err)

	// Bypasses the refresh middleware: the handler sees the stale ledger.
	rec := httptest.NewRecorder()
	srv := NewServer(":0", services.NewLedgerService(m, nil))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	req := httptest.NewRequest(http.MethodPost, "/api/close-month", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.handleCloseMonth(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, ErrConflict, decode(t, rec)["code"])
	assert.Len(t, m.History(), 1)
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"missing value", http.MethodPost, "/api/incomes", `{"description":"Salário"}`, http.StatusBadRequest, ErrMissingRequiredData},
		{"negative value", http.MethodPost, "/api/incomes", `{"description":"Salário","value":-1}`, http.StatusBadRequest, ErrInvalidFormat},
		{"empty description", http.MethodPost, "/api/incomes", `{"description":"  ","value":10}`, http.StatusUnprocessableEntity, ErrValidation},
		{"malformed json", http.MethodPost, "/api/incomes", `{"description":`, http.StatusBadRequest, ErrInvalidRequest},
		{"unknown kind", http.MethodPost, "/api/expenses", `{"kind":"loan","description":"x","value":1}`, http.StatusUnprocessableEntity, ErrValidation},
		{"category patch without fields", http.MethodPatch, "/api/categories/any", `{}`, http.StatusBadRequest, ErrMissingRequiredData},
		{"bad threshold", http.MethodPut, "/api/settings", `{"alertThreshold":150}`, http.StatusUnprocessableEntity, ErrValidation},
		{"bad history filter", http.MethodGet, "/api/history?filter=decade", "", http.StatusUnprocessableEntity, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode(t, rec)["code"])
		})
	}
}

func TestFallbacks(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrNotFound, decode(t, rec)["code"])

	rec = do(t, srv, http.MethodPut, "/api/incomes", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, ErrMethodNotAllowed, decode(t, rec)["code"])
}

func TestCardDeleteNeedsConfirmation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards", `{"name":"Nubank","bank":"Nubank"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	rec = do(t, srv, http.MethodPost, "/api/cards/"+id+"/expenses",
		`{"description":"Netflix","category":"Streaming","value":45.9,"installment":"1/12"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/cards/"+id+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["isActive"])

	rec = do(t, srv, http.MethodDelete, "/api/cards/"+id, "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, ErrConfirmationRequired, decode(t, rec)["code"])

	rec = do(t, srv, http.MethodDelete, "/api/cards/"+id+"?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCloseMonthAndHistory(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/incomes", `{"description":"Salário","value":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/close-month", `{"notes":"mês tranquilo"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "janeiro de 2025", body["nextLabel"])
	closed := body["closed"].(map[string]any)
	id := closed["id"].(string)
	assert.Equal(t, "mês tranquilo", closed["notes"])
	assert.Equal(t, 5000.0, closed["income"])

	rec = do(t, srv, http.MethodGet, "/api/history?q=dezembro", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["total"])

	rec = do(t, srv, http.MethodGet, "/api/history/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/history/"+id, "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/history/"+id+"?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/history/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportsAreCachedPerRevision(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/export/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="relatorio-financeiro-dezembro-de-2024.json"`, rec.Header().Get("Content-Disposition"))
	first := rec.Body.String()
	assert.Equal(t, 1, srv.exports.Size())

	rec = do(t, srv, http.MethodGet, "/api/export/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, rec.Body.String())
	assert.Equal(t, 1, srv.exports.Size())

	rec = do(t, srv, http.MethodPost, "/api/incomes", `{"description":"Freela","value":800}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/export/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, first, rec.Body.String())
	assert.Equal(t, 2, srv.exports.Size())

	rec = do(t, srv, http.MethodGet, "/api/export/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="historico-completo-2024-12-20.json"`, rec.Header().Get("Content-Disposition"))
}

func TestSettingsUpdate(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/settings", `{"currency":"usd","alertThreshold":90}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, 90.0, body["alertThreshold"])
	assert.Equal(t, 1.0, body["monthStartDay"])
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute}))

	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, ErrRateLimited, decode(t, rec)["code"])
}

func TestBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, WithMaxBodyBytes(32))

	rec := do(t, srv, http.MethodPut, "/api/notes", `{"notes":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, ErrBodyTooLarge, decode(t, rec)["code"])
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) TriggerManualSweep(context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

func (f *fakeSweeper) Status() map[string]any {
	return map[string]any{"running": true}
}

func TestOverdueSweepRoutes(t *testing.T) {
	sw := &fakeSweeper{}
	srv := newTestServer(t, WithOverdueSweeper(sw))

	rec := do(t, srv, http.MethodPost, "/api/maintenance/overdue-sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["marked"])
	assert.Equal(t, 1, sw.calls)

	rec = do(t, srv, http.MethodGet, "/api/maintenance/overdue-sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["running"])
}

func TestOverdueSweepRoutesAbsentWithoutSweeper(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/maintenance/overdue-sweep", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
