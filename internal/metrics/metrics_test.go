package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClipOp_Counts(t *testing.T) {
	m := New()

	m.ClipOp("create", ResultOK)
	m.ClipOp("create", ResultOK)
	m.ClipOp("create", ResultInvalid)

	if got := testutil.ToFloat64(m.clipOps.WithLabelValues("create", ResultOK)); got != 2 {
		t.Errorf("create/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.clipOps.WithLabelValues("create", ResultInvalid)); got != 1 {
		t.Errorf("create/invalid = %v, want 1", got)
	}
}

func TestValidationFailure_Counts(t *testing.T) {
	m := New()
	m.ValidationFailure("too_long")

	if got := testutil.ToFloat64(m.validationFailures.WithLabelValues("too_long")); got != 1 {
		t.Errorf("too_long = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ClipOp("list", ResultOK)
	m.ValidationFailure("empty")
	m.ObserveRequest("GET", "/api/clips", 200, time.Millisecond)
	if m.Registry() != nil {
		t.Error("nil Metrics should have nil registry")
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("nil Metrics handler status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ClipOp("delete", ResultNotFound)
	m.ObserveRequest("DELETE", "/api/clips/{id}", http.StatusNotFound, 5*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		`cliphub_clip_operations_total{op="delete",result="not_found"} 1`,
		`cliphub_http_request_duration_seconds_count{method="DELETE",route="/api/clips/{id}",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
