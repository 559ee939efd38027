package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fraudserve/internal/shared/config"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Artifacts: config.ArtifactConfig{
			Source:        config.ArtifactSourceFile,
			Dir:           filepath.Join("..", "..", "artifacts"),
			Manifest:      "manifest.yaml",
			VerifyDigests: true,
		},
	}
}

func TestSetupRoutes(t *testing.T) {
	cfg := newTestConfig()
	deps, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewDependencies() failed: %v", err)
	}
	defer deps.Close()

	if deps.Listener != nil {
		t.Error("file source should not start a publish listener")
	}
	handler := SetupRoutes(deps, cfg)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"home", http.MethodGet, "/", "", http.StatusOK, "Fraud"},
		{"health", http.MethodGet, "/health", "", http.StatusOK, `{"status":"ok"}`},
		{"artifacts", http.MethodGet, "/artifacts", "", http.StatusOK, `"version":"2024.1"`},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound, ""},
		{"predict", http.MethodPost, "/fraud/predict",
			`{"step":1,"type":"TRANSFER","amount":181,"oldbalanceOrg":181,"newbalanceOrig":0,"oldbalanceDest":0,"newbalanceDest":0}`,
			http.StatusOK, `"prediction":1`},
		{"predict empty", http.MethodPost, "/fraud/predict", "{}", http.StatusBadRequest, "No data provided"},
		{"predict wrong method", http.MethodGet, "/fraud/predict", "", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", w.Body.String(), tt.wantBody)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header not set")
			}
		})
	}
}

func TestSetupRoutes_HSTSWhenTLS(t *testing.T) {
	cfg := newTestConfig()
	cfg.TLS.Enabled = true
	deps, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewDependencies() failed: %v", err)
	}
	defer deps.Close()

	w := httptest.NewRecorder()
	SetupRoutes(deps, cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Strict-Transport-Security header not set with TLS enabled")
	}
}

func TestArtifactsRoute_Info(t *testing.T) {
	cfg := newTestConfig()
	deps, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewDependencies() failed: %v", err)
	}
	defer deps.Close()

	w := httptest.NewRecorder()
	SetupRoutes(deps, cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/artifacts", nil))

	var info struct {
		Compatible   bool     `json:"compatible"`
		ModelColumns []string `json:"model_columns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !info.Compatible || len(info.ModelColumns) != 7 {
		t.Errorf("info = %+v, want a compatible set with 7 model columns", info)
	}
}

func TestNewServerConfigFromConfig(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "0.0.0.0", Port: "8443", AllowedHosts: []string{"fraud.example.com"}},
		TLS:    config.TLSConfig{Enabled: true, CertPath: "c.pem", KeyPath: "k.pem", RedirectHTTP: true},
	}

	scfg := NewServerConfigFromConfig(http.NotFoundHandler(), cfg)
	if scfg.Addr != "0.0.0.0:8443" || scfg.Port != "8443" {
		t.Errorf("Addr = %q, Port = %q", scfg.Addr, scfg.Port)
	}
	if !scfg.TLSEnabled || !scfg.RedirectHTTP || scfg.CertPath != "c.pem" {
		t.Errorf("TLS settings not carried over: %+v", scfg)
	}

	srv := createRedirectServer(scfg.AllowedHosts, scfg.Port)
	req := httptest.NewRequest(http.MethodGet, "http://fraud.example.com/fraud/predict", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMovedPermanently)
	}
	if loc := w.Header().Get("Location"); loc != "https://fraud.example.com:8443/fraud/predict" {
		t.Errorf("Location = %q", loc)
	}
}

func TestStartServers_ReportsListenerFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	srv, redirectSrv, errCh := StartServers(ServerConfig{
		Handler: http.NotFoundHandler(),
		Addr:    taken.Addr().String(),
	})
	if redirectSrv != nil {
		t.Error("redirect server started without TLS")
	}

	select {
	case err := <-errCh:
		if err == nil || !strings.Contains(err.Error(), "api server") {
			t.Errorf("err = %v, want an api server listen error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no listener error reported")
	}

	if err := GracefulShutdown(srv, nil, time.Second); err != nil {
		t.Errorf("GracefulShutdown() = %v", err)
	}
}
