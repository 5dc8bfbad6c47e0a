package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mhalley/gatherd/internal/core"
)

func TestNew(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}
	if _, err := m.Registry.Gather(); err != nil {
		t.Fatalf("gather failed: %v", err)
	}
}

func TestRecordEvaluation(t *testing.T) {
	m := New()

	m.RecordEvaluation("discount", true)
	m.RecordEvaluation("discount", true)
	m.RecordEvaluation("featured", false)

	if got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("discount", "pass")); got != 2 {
		t.Fatalf("discount pass count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("featured", "fail")); got != 1 {
		t.Fatalf("featured fail count = %v, want 1", got)
	}
}

func TestRecordTransition(t *testing.T) {
	m := New()

	m.RecordTransition(core.EventAttend, true)
	m.RecordTransition(core.EventAttend, false)
	m.RecordTransition(core.EventCancel, true)

	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("attend", "applied")); got != 1 {
		t.Fatalf("attend applied count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("attend", "denied")); got != 1 {
		t.Fatalf("attend denied count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("cancel", "applied")); got != 1 {
		t.Fatalf("cancel applied count = %v, want 1", got)
	}
}

func TestRecordNotification(t *testing.T) {
	m := New()

	m.RecordNotification(core.TemplateAttending, nil)
	m.RecordNotification(core.TemplateAttending, errors.New("broker down"))

	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("attending", "delivered")); got != 1 {
		t.Fatalf("delivered count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("attending", "failed")); got != 1 {
		t.Fatalf("failed count = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/healthz", 200, 0.001)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "gatherd_http_requests_total") {
		t.Fatalf("metrics output missing gatherd_http_requests_total:\n%s", body)
	}
}
