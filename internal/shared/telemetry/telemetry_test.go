package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestInit_MetricsOnly(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "fraudserve-test",
		Environment: "test",
		MetricsPort: "0",
	})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() failed: %v", err)
	}
}

func TestInit_NothingExported(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "fraudserve-test", ServiceVersion: "2024.1"})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() failed: %v", err)
	}
}

func TestServeMetrics(t *testing.T) {
	registry := promclient.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	srv, err := serveMetrics("0", registry)
	if err != nil {
		t.Fatalf("serveMetrics() failed: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Errorf("scrape missing go_goroutines:\n%s", rr.Body.String())
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Config{ServiceName: "fraudserve-api", Environment: "staging", ServiceVersion: "v3"})
	if err != nil {
		t.Fatalf("newResource() failed: %v", err)
	}

	want := map[string]string{
		string(semconv.ServiceNameKey):           "fraudserve-api",
		string(semconv.DeploymentEnvironmentKey): "staging",
		string(semconv.ServiceVersionKey):        "v3",
	}
	got := make(map[string]string)
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}
