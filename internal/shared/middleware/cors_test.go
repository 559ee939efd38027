package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"dashboard.fraud.example", "localhost", "review.fraud.example:8443", "  ops.fraud.example  "}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://dashboard.fraud.example", true},
		{"https://dashboard.fraud.example:3000", true},
		{"https://Dashboard.FRAUD.example", true},
		{"http://localhost:5173", true},
		{"https://review.fraud.example:8443", true},
		{"https://review.fraud.example", false},
		{"https://ops.fraud.example", true},
		{"https://api.dashboard.fraud.example", false},
		{"https://fraud.example", false},
		{"https://attacker.example", false},
		{"://broken", false},
		{"null", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := isOriginAllowed(tt.origin, allowed); got != tt.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		allowedHosts    []string
		method          string
		origin          string
		wantStatus      int
		wantAllowOrigin string
		wantCredentials bool
		wantNext        bool
	}{
		{"open API", nil, http.MethodPost, "https://anything.example", http.StatusOK, "*", false, true},
		{"allowed origin echoed", []string{"dashboard.fraud.example"}, http.MethodPost, "https://dashboard.fraud.example", http.StatusOK, "https://dashboard.fraud.example", true, true},
		{"disallowed origin", []string{"dashboard.fraud.example"}, http.MethodPost, "https://attacker.example", http.StatusForbidden, "", false, false},
		{"same-origin request", []string{"dashboard.fraud.example"}, http.MethodPost, "", http.StatusOK, "", false, true},
		{"preflight", []string{"dashboard.fraud.example"}, http.MethodOptions, "https://dashboard.fraud.example", http.StatusNoContent, "https://dashboard.fraud.example", true, false},
		{"open preflight", nil, http.MethodOptions, "", http.StatusNoContent, "*", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/fraud/predict", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORS(tt.allowedHosts)(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllowOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCredentials {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCredentials)
			}
		})
	}
}

func TestCORS_Headers(t *testing.T) {
	handler := CORS([]string{"dashboard.fraud.example"})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/fraud/predict", nil)
	req.Header.Set("Origin", "https://dashboard.fraud.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	want := map[string]string{
		"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers":  "Content-Type, X-Request-ID",
		"Access-Control-Expose-Headers": "X-Request-ID, X-Artifact-Version",
		"Vary":                          "Origin",
	}
	for header, value := range want {
		if got := rr.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}
