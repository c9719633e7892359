package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "checkin/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	logger := applog.New(applog.Config{
		Handler: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}).WithComponent(applog.ComponentHTTP)
	return NewMiddleware(logger, func(r *http.Request) string { return "192.0.2.1" })
}

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))

	line := buf.String()
	for _, want := range []string{"http request", "method=GET", "path=/dashboard", "status=200", "client_ip=192.0.2.1", "request_id=req_"} {
		if !strings.Contains(line, want) {
			t.Errorf("log %q missing %q", line, want)
		}
	}
	if got := strings.Count(line, "component="); got != 1 {
		t.Errorf("component attribute appears %d times, want 1: %q", got, line)
	}
	if m.TotalRequests() != 1 {
		t.Errorf("TotalRequests() = %d, want 1", m.TotalRequests())
	}
}

func TestMiddlewareLogLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"ok is info", http.StatusOK, "level=INFO"},
		{"client error is warn", http.StatusNotFound, "level=WARN"},
		{"server error is error", http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := newTestMiddleware(&buf)
			handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("log %q missing %q", buf.String(), tt.level)
			}
		})
	}
}
