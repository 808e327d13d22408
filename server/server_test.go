package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
)

func newTestServer(t *testing.T, checker func(context.Context) []component.Health, ready func(context.Context) error) (*Server, *httptest.Server) {
	t.Helper()
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	s := New(cfg, logger.NewNop())
	gin.SetMode(gin.TestMode)
	s.ApplyDefaults("pilgi", checker, ready)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []component.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{"all healthy", []component.HealthStatus{component.StatusHealthy}, http.StatusOK, "healthy"},
		{"degraded", []component.HealthStatus{component.StatusHealthy, component.StatusDegraded}, http.StatusOK, "degraded"},
		{"unhealthy wins", []component.HealthStatus{component.StatusDegraded, component.StatusUnhealthy}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := func(context.Context) []component.Health {
				out := make([]component.Health, len(tt.statuses))
				for i, st := range tt.statuses {
					out[i] = component.Health{Name: "c", Status: st}
				}
				return out
			}
			_, ts := newTestServer(t, checker, nil)
			code, body := getJSON(t, ts.URL+"/health")
			if code != tt.wantCode || body["status"] != tt.wantStatus {
				t.Errorf("got %d %v, want %d %s", code, body["status"], tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	var loaded atomic.Bool
	_, ts := newTestServer(t, nil, func(context.Context) error {
		if !loaded.Load() {
			return errors.New("model is loading")
		}
		return nil
	})

	code, body := getJSON(t, ts.URL+"/ready")
	if code != http.StatusServiceUnavailable || body["status"] != "not_ready" || body["reason"] != "model is loading" {
		t.Errorf("unexpected not-ready response: %d %v", code, body)
	}

	loaded.Store(true)
	code, body = getJSON(t, ts.URL+"/ready")
	if code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("unexpected ready response: %d %v", code, body)
	}
}

func TestVersionEndpointAndRequestID(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("middleware stack not applied: missing X-Request-Id")
	}
}

func TestRoutesSystemLast(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	s.GinEngine().POST("/api/v1/transcriptions", func(*gin.Context) {})
	s.GinEngine().GET("/api/v1/model", func(*gin.Context) {})

	routes := s.Routes()
	if len(routes) != 5 {
		t.Fatalf("expected 5 routes, got %d", len(routes))
	}
	if routes[0].Path != "/api/v1/model" || routes[1].Path != "/api/v1/transcriptions" {
		t.Errorf("API routes must come first: %+v", routes[:2])
	}
	for _, r := range routes[2:] {
		if !systemPaths[r.Path] {
			t.Errorf("expected system route, got %s", r.Path)
		}
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/kbukum/pilgi/api.(*Handler).Download-fm":                              "Handler.Download",
		"github.com/kbukum/pilgi/server/endpoint.Health.func1":                             "health",
		"github.com/kbukum/pilgi/server.(*Server).RegisterDefaultEndpoints.Version.func1": "version",
	}
	for in, want := range tests {
		if got := formatHandlerName(in); got != want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, logger.NewNop())
	s.RegisterDefaultEndpoints("pilgi", nil, nil)

	if h := s.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %+v", h)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.Addr() == "127.0.0.1:0" {
		t.Error("Addr still reports the configured port")
	}
	if h := s.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health while serving = %+v", h)
	}
	code, _ := getJSON(t, "http://"+s.Addr()+"/health")
	if code != http.StatusOK {
		t.Errorf("expected 200 from running server, got %d", code)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for s.Health(context.Background()).Status != component.StatusUnhealthy {
		if time.Now().After(deadline) {
			t.Fatal("still reported serving after Stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartReportsBindFailure(t *testing.T) {
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	first := New(cfg, logger.NewNop())
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer first.Stop(context.Background())

	_, port, _ := net.SplitHostPort(first.Addr())
	cfg.Port, _ = strconv.Atoi(port)
	if err := New(cfg, logger.NewNop()).Start(context.Background()); err == nil {
		t.Fatal("second listener on the same port started")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	cfg.MaxBodySize = "huge"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unparsable max_body_size")
	}
	cfg.MaxBodySize = ""
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "port: must be at most 65535") {
		t.Errorf("out-of-range port: %v", err)
	}
	cfg.Port = 80
	cfg.ShutdownTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative shutdown_timeout")
	}
}
