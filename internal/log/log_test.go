package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, ComponentLedger)

	l.Info("Month closed", FieldMonthID, "m-1")
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "month_id=m-1") {
		t.Errorf("unexpected output %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentHTTP).With(FieldRequestID, "req_1").Warn("slow")
	out = buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "request_id=req_1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNewDefaultsComponent(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}})
	if l.Component() != ComponentApp {
		t.Errorf("Component() = %q, want %q", l.Component(), ComponentApp)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
	l.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error record, got %q", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Errorf("expected fallback logger, got %+v", l)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf, ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if !strings.Contains(buf.String(), "request_id=req_42") {
		t.Errorf("expected request id in %q", buf.String())
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := bufferLogger(&buf, ComponentHTTP)
			ctx := NewContext(context.Background(), l)
			r := httptest.NewRequest(http.MethodGet, "/api/history?q=dez", nil)

			NewStructuredLogger(l).LogHTTPEnd(ctx, r, tt.status, 12, "10.0.0.1")
			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %s in %q", tt.level, out)
			}
			if !strings.Contains(out, "path=/api/history") || !strings.Contains(out, `query="q=dez"`) {
				t.Errorf("missing request fields in %q", out)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentApp))
	sl.LogError(context.Background(), "Failed to save", errors.New("disk full"), ComponentStorage, OpCloseMonth, nil)

	out := buf.String()
	for _, want := range []string{"component=storage", "operation=close_month", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %q", want, out)
		}
	}
}
