package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/config"
	"github.com/HerbHall/cliphub/internal/metrics"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 0}
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ping", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, "pong")
	})
}

func TestHealth(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-ClipHub-Version") != "dev" {
		t.Errorf("X-ClipHub-Version = %q, want dev", w.Header().Get("X-ClipHub-Version"))
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on health response")
	}
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("X-Request-ID missing on health response")
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Service string            `json:"service"`
			Version map[string]string `json:"version"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != StatusSuccess {
		t.Errorf("status = %q, want success", body.Status)
	}
	if body.Data.Service != "cliphub" {
		t.Errorf("service = %q, want cliphub", body.Data.Service)
	}
	if body.Data.Version["version"] != "dev" {
		t.Errorf("version.version = %q, want dev", body.Data.Version["version"])
	}
}

func TestHealth_CheckFailure(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop(), WithHealthCheck(func(context.Context) error {
		return errors.New("disk gone")
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk gone") {
		t.Error("health response leaked the underlying error")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := New(testServerConfig(), zap.NewNop(), WithMetrics(m))

	// One request so the duration histogram has a sample.
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `cliphub_http_request_duration_seconds_count{method="GET",route="GET /api/health",status="200"} 1`) {
		t.Errorf("metrics output missing health request sample:\n%s", body)
	}
}

func TestMetricsEndpoint_AbsentWithoutMetrics(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRequireAJAX_Configured(t *testing.T) {
	cfg := testServerConfig()
	cfg.RequireAJAX = true
	s := New(cfg, zap.NewNop(), WithRoutes(pingRoutes{}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ping", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status without header = %d, want 403", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/ping", nil)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status with header = %d, want 200", w.Code)
	}
}

func TestRequireAJAX_OffByDefault(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop(), WithRoutes(pingRoutes{}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ping", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRecoversFromPanics(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop(), WithRoutes(panicRoutes{}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

type panicRoutes struct{}

func (panicRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/panic", func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})
}

func TestServeAndShutdown(t *testing.T) {
	s := New(testServerConfig(), zap.NewNop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v, want nil after shutdown", err)
	}
}
