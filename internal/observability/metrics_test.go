package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	done := m.RequestStarted()
	m.RecordRequest("/api/tickets/:id", "GET", 200, 15*time.Millisecond)
	done()
	m.NotificationEmitted("ticket_assigned")
	m.HandlerFailed("comment_added")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`http_requests_total{method="GET",path="/api/tickets/:id",status="200"} 1`,
		`notifications_emitted_total{type="ticket_assigned"} 1`,
		`notification_failures_total{event="comment_added"} 1`,
		`http_in_flight_requests 0`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "NOT_FOUND")
	m.NotificationEmitted("system")
	m.LLMRequest("ok")
	m.OverdueFlagged(3)
	m.RequestStarted()()
}
