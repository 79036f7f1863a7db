package http

import (
	"net/http"
	"runtime/debug"
	"strings"

	applog "orcamento/internal/log"
)

// recoverer turns a handler panic into a logged 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
				"panic", rec,
				applog.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))
			WriteError(w, ErrInternalServer, "internal error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request bodies; reads past n fail with *http.MaxBytesError.
func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && n > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// refreshLedger picks up writes made by other processes sharing the store
// before an API request reads or changes the ledger. A failed refresh is
// logged and the request is served from memory.
func (s *Server) refreshLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			if err := s.ledger.Refresh(r.Context()); err != nil {
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Ledger refresh failed",
					applog.FieldError, err)
			}
		}
		next.ServeHTTP(w, r)
	})
}
