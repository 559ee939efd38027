package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantVersion string
		wantError   bool
	}{
		{
			name: "prediction tagged with artifact version",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(ArtifactVersionHeader, "2024-06-01")
				w.Write([]byte(`[]`))
			},
			wantStatus:  http.StatusOK,
			wantVersion: "2024-06-01",
		},
		{
			name:       "client error is not a span error",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "server error marks the span",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(recorder.Ended())

			req := httptest.NewRequest(http.MethodPost, "/fraud/predict", nil)
			req.Header.Set(RequestIDHeader, "req-7")
			RequestID(Tracing(tt.handler)).ServeHTTP(httptest.NewRecorder(), req)

			ended := recorder.Ended()
			if len(ended) != before+1 {
				t.Fatalf("ended spans = %d, want %d", len(ended), before+1)
			}
			span := ended[len(ended)-1]
			if span.Name() != "POST /fraud/predict" {
				t.Errorf("span name = %q", span.Name())
			}

			attrs := make(map[attribute.Key]attribute.Value)
			for _, kv := range span.Attributes() {
				attrs[kv.Key] = kv.Value
			}
			if got := attrs["http.status_code"].AsInt64(); got != int64(tt.wantStatus) {
				t.Errorf("http.status_code = %d, want %d", got, tt.wantStatus)
			}
			if got := attrs["http.request_id"].AsString(); got != "req-7" {
				t.Errorf("http.request_id = %q, want req-7", got)
			}
			if got := attrs["artifacts.version"].AsString(); got != tt.wantVersion {
				t.Errorf("artifacts.version = %q, want %q", got, tt.wantVersion)
			}
			if isErr := span.Status().Code == codes.Error; isErr != tt.wantError {
				t.Errorf("span error = %v, want %v", isErr, tt.wantError)
			}
		})
	}
}
