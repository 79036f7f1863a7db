package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/justinas/alice"

	"orcamento/internal/cache"
	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/middleware/security"
	"orcamento/internal/middleware/trace"
)

const (
	defaultMaxBodyBytes = 1 << 20
	exportCacheSize     = 32
	exportCacheTTL      = 10 * time.Minute
)

// Ledger is the part of the ledger service the API drives. It is satisfied
// by *services.LedgerService.
type Ledger interface {
	Working() core.WorkingMonth
	Period() core.Period
	History() []core.MonthlyData
	Month(id string) (core.MonthlyData, error)
	Settings() core.Settings
	UpdateSettings(s core.Settings) error
	Revision() uint64
	Summary() ledger.Summary
	Now() time.Time
	Refresh(ctx context.Context) error

	RecordIncome(ctx context.Context, description string, value core.Money) (core.IncomeSource, error)
	UpdateIncome(ctx context.Context, id string, value core.Money) error
	RemoveIncome(ctx context.Context, id string) error

	AddCategory(ctx context.Context, name string, estimated core.Money, color string) (core.ExpenseCategory, error)
	UpdateCategory(ctx context.Context, id string, p ledger.CategoryPatch) (core.ExpenseCategory, error)

	AddExpense(ctx context.Context, in ledger.ExpenseInput) (string, error)
	AddFixedExpense(ctx context.Context, in ledger.FixedExpenseInput) (core.FixedExpense, error)
	UpdateFixedExpense(ctx context.Context, id string, p ledger.FixedExpensePatch) (core.FixedExpense, error)
	RemoveFixedExpense(ctx context.Context, id string) error

	AddCard(ctx context.Context, in ledger.CardInput) (core.CreditCard, error)
	ToggleCard(ctx context.Context, id string) (bool, error)
	DeleteCard(ctx context.Context, id string) error
	AddCardExpense(ctx context.Context, cardID string, in ledger.CardExpenseInput) (core.CardExpense, error)
	UpdateCardExpense(ctx context.Context, cardID, id string, p ledger.CardExpensePatch) (core.CardExpense, error)
	RemoveCardExpense(ctx context.Context, cardID, id string) error

	SetNotes(ctx context.Context, notes string) error
	CloseMonth(ctx context.Context) (core.MonthlyData, error)
	CloseMonthWithNotes(ctx context.Context, notes string) (core.MonthlyData, error)
	DeleteHistoricalMonth(ctx context.Context, id string) error
	SearchHistory(query string, filter ledger.HistoryFilter) []core.MonthlyData
}

// OverdueSweeper runs the overdue sweep on demand.
type OverdueSweeper interface {
	TriggerManualSweep(ctx context.Context) (int, error)
	Status() map[string]any
}

// Server is the JSON API over one ledger.
type Server struct {
	http.Server

	ledger  Ledger
	sweeper OverdueSweeper
	ready   func(ctx context.Context) error
	logger  *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	exports      *cache.LRUCache[[]byte]
	caches       *cache.Manager
	maxBodyBytes int64

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithOverdueSweeper(s OverdueSweeper) Option {
	return func(srv *Server) { srv.sweeper = s }
}

// WithReadinessCheck makes /ready report 503 while check fails.
func WithReadinessCheck(check func(ctx context.Context) error) Option {
	return func(srv *Server) { srv.ready = check }
}

func WithLogger(l *applog.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(srv *Server) {
		if srv.limiter != nil {
			srv.limiter.Stop()
		}
		srv.limiter = ratelimit.NewLimiter(cfg)
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(srv *Server) { srv.maxBodyBytes = n }
}

// NewServer wires routes and middlewares, returning a ready-to-run server.
func NewServer(addr string, l Ledger, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ledger:       l,
		logger:       applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP),
		detector:     security.NewDetector(),
		exports:      cache.NewLRUCache[[]byte](exportCacheSize, exportCacheTTL),
		caches:       cache.NewManager(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ClientIP)

	s.caches.Register(s.exports)
	s.caches.StartCleanup(exportCacheTTL)

	rt := NewRouter(
		WithFallbacks(http.HandlerFunc(handleNotFound), http.HandlerFunc(handleMethodNotAllowed)),
		WithRoutes(s.healthRoutes()...),
		WithRoutes(s.ledgerRoutes()...),
		WithRoutes(s.incomeRoutes()...),
		WithRoutes(s.categoryRoutes()...),
		WithRoutes(s.expenseRoutes()...),
		WithRoutes(s.cardRoutes()...),
		WithRoutes(s.historyRoutes()...),
		WithRoutes(s.exportRoutes()...),
		WithRoutes(s.settingsRoutes()...),
		WithRoutes(s.maintenanceRoutes()...),
	)

	s.Handler = alice.New(
		s.tracer.Handler,
		recoverer,
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware,
		s.limiter.Middleware(s.detector.ClientIP, handleRateLimited),
		limitBody(s.maxBodyBytes),
		s.refreshLedger,
	).Then(rt)

	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request and protection counters for /health.
func (s *Server) Metrics() map[string]any {
	tm := s.tracer.Metrics()
	return map[string]any{
		"requests":            tm.TotalRequests,
		"in_flight":           tm.InFlight,
		"rate_limited":        s.limiter.Hits(),
		"rate_limit_clients":  s.limiter.ActiveClients(),
		"suspicious_requests": s.detector.SuspiciousRequests(),
		"export_cache_size":   s.exports.Size(),
	}
}

func (s *Server) healthRoutes() []Route {
	return []Route{
		{Path: "/health", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleHealth)},
		{Path: "/ready", Method: http.MethodGet, Handler: http.HandlerFunc(s.handleReady)},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"revision": s.ledger.Revision(),
		"metrics":  s.Metrics(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			WriteError(w, ErrUnavailable, "not ready", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, ErrNotFound, "no route for "+r.URL.Path, nil)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, ErrMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path, nil)
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	WriteError(w, ErrRateLimited, "rate limit exceeded, try again later", nil)
}
