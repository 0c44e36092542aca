package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deadlinebot/internal/conversation"
	"deadlinebot/pkg/logx"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsRecord(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, Gauges{Sessions: func() int { return 3 }})
	if err != nil {
		t.Fatal(err)
	}
	m.UpdateHandled("message", "ok", 10*time.Millisecond)
	m.UpdateHandled("message", "ok", 10*time.Millisecond)
	m.UpdateDropped("busy")
	m.FlowEvent(conversation.FlowAdd, "done")
	m.ReminderFired("sent", time.Second)

	if v := counterValue(t, reg, "deadlinebot_router_updates_total", map[string]string{"kind": "message", "outcome": "ok"}); v != 2 {
		t.Fatalf("updates = %v", v)
	}
	if v := counterValue(t, reg, "deadlinebot_router_updates_dropped_total", map[string]string{"reason": "busy"}); v != 1 {
		t.Fatalf("dropped = %v", v)
	}
	if v := counterValue(t, reg, "deadlinebot_conversation_flow_events_total", map[string]string{"flow": "add", "event": "done"}); v != 1 {
		t.Fatalf("flow events = %v", v)
	}
	if v := counterValue(t, reg, "deadlinebot_reminder_fired_total", map[string]string{"outcome": "sent"}); v != 1 {
		t.Fatalf("reminders = %v", v)
	}
	if v := counterValue(t, reg, "deadlinebot_conversation_sessions", nil); v != 3 {
		t.Fatalf("sessions = %v", v)
	}
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg, Gauges{}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(reg, Gauges{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.UpdateHandled("message", "ok", 0)
	m.UpdateDropped("busy")
	m.FlowEvent(conversation.FlowAdd, "enter")
	m.ReminderFired("empty", 0)
}

func TestHandlerAuthAndRoutes(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, Gauges{})
	if err != nil {
		t.Fatal(err)
	}
	m.UpdateHandled("callback", "ok", time.Millisecond)
	s := NewServer(ServerConfig{}, reg, func() any { return map[string]int{"scheduled": 2} }, logx.Nop())
	h := s.Handler(ServerConfig{Token: "secret"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
		body   string
	}{
		{"no token", "/healthz", "", http.StatusUnauthorized, ""},
		{"query token", "/healthz?token=secret", "", http.StatusOK, `"scheduled":2`},
		{"bearer", "/metrics", "Bearer secret", http.StatusOK, "deadlinebot_router_updates_total"},
		{"wrong bearer", "/metrics", "Bearer nope", http.StatusUnauthorized, ""},
		{"pprof disabled", "/debug/pprof/?token=secret", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("body %q lacks %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:9090": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":9090":          false,
		"0.0.0.0:9090":   false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Fatalf("isLoopback(%q) = %v", addr, got)
		}
	}
}

func TestServerConfigCheck(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  ServerConfig
		ok   bool
	}{
		{"disabled", ServerConfig{Addr: "0.0.0.0:1"}, true},
		{"default addr", ServerConfig{Enabled: true}, true},
		{"public without token", ServerConfig{Enabled: true, Addr: ":9090"}, false},
		{"public with token", ServerConfig{Enabled: true, Addr: ":9090", Token: "t"}, true},
		{"bad addr", ServerConfig{Enabled: true, Addr: "nope"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Check(); (err == nil) != tt.ok {
				t.Fatalf("Check() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
