package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
	"fraudserve/internal/infrastructure/artifactstore"
)

// MockPredictor implements Predictor for testing
type MockPredictor struct {
	PredictFunc func(ctx context.Context, records []*transaction.Record) (*prediction.Result, error)
	calls       int
}

func (m *MockPredictor) Predict(ctx context.Context, records []*transaction.Record) (*prediction.Result, error) {
	m.calls++
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, records)
	}
	out := make([]*transaction.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
		out[i].Set(prediction.PredictionField, 0)
	}
	return &prediction.Result{Version: "v-mock", Records: out}, nil
}

func TestHandlePredict(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		predictErr     error
		expectedStatus int
		expectedError  string
		expectPredict  bool
	}{
		{
			name:           "Single object",
			method:         http.MethodPost,
			body:           `{"step":1,"type":"TRANSFER","amount":1000}`,
			expectedStatus: http.StatusOK,
			expectPredict:  true,
		},
		{
			name:           "Array",
			method:         http.MethodPost,
			body:           `[{"step":1},{"step":2}]`,
			expectedStatus: http.StatusOK,
			expectPredict:  true,
		},
		{
			name:           "Empty body",
			method:         http.MethodPost,
			body:           ``,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "No data provided",
		},
		{
			name:           "Empty object",
			method:         http.MethodPost,
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "No data provided",
		},
		{
			name:           "Empty array",
			method:         http.MethodPost,
			body:           `[]`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "No data provided",
		},
		{
			name:           "Invalid JSON",
			method:         http.MethodPost,
			body:           `{"step":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid input data",
		},
		{
			name:           "Non-object element",
			method:         http.MethodPost,
			body:           `[{"step":1}, 5]`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid input data",
		},
		{
			name:           "Feature mismatch",
			method:         http.MethodPost,
			body:           `{"step":1}`,
			predictErr:     &prediction.Error{Kind: prediction.KindFeatureMismatch, Stage: prediction.StageDerived, Message: `missing model column "type_TRANSFER"`},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Prepared features do not match the fitted artifacts",
			expectPredict:  true,
		},
		{
			name:           "Artifact incompatibility",
			method:         http.MethodPost,
			body:           `{"step":1}`,
			predictErr:     &prediction.Error{Kind: prediction.KindArtifactIncompatibility, Stage: prediction.StagePrepared, Message: "inference failed"},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Classifier rejected the prepared features",
			expectPredict:  true,
		},
		{
			name:           "Cancelled",
			method:         http.MethodPost,
			body:           `{"step":1}`,
			predictErr:     context.Canceled,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "An error occurred",
			expectPredict:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockPredictor{}
			if tt.predictErr != nil {
				mock.PredictFunc = func(context.Context, []*transaction.Record) (*prediction.Result, error) {
					return nil, tt.predictErr
				}
			}
			handler := NewPredictionHandler(mock, 0)

			req := httptest.NewRequest(tt.method, "/fraud/predict", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.HandlePredict(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("HandlePredict() status = %d, want %d (body %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
			if (mock.calls > 0) != tt.expectPredict {
				t.Errorf("predictor called %d times, expectPredict %v", mock.calls, tt.expectPredict)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			if tt.expectedError != "" {
				var payload prediction.Payload
				if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
					t.Fatalf("Failed to decode error body: %v", err)
				}
				if payload.Error != tt.expectedError {
					t.Errorf("error = %q, want %q", payload.Error, tt.expectedError)
				}
			}
		})
	}
}

func TestHandlePredict_MethodNotAllowed(t *testing.T) {
	handler := NewPredictionHandler(&MockPredictor{}, 0)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/fraud/predict", nil)
		w := httptest.NewRecorder()
		handler.HandlePredict(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d, want %d", method, w.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestHandlePredict_BodyTooLarge(t *testing.T) {
	mock := &MockPredictor{}
	handler := NewPredictionHandler(mock, 16)

	req := httptest.NewRequest(http.MethodPost, "/fraud/predict", strings.NewReader(`{"step":1,"type":"TRANSFER","amount":1000}`))
	w := httptest.NewRecorder()
	handler.HandlePredict(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if mock.calls != 0 {
		t.Error("predictor called for an oversized body")
	}
}

func TestHandlePredict_ResponseShape(t *testing.T) {
	handler := NewPredictionHandler(&MockPredictor{}, 0)

	body := `{"type":"CASH_OUT","step":3,"oldbalanceOrg":10}`
	req := httptest.NewRequest(http.MethodPost, "/fraud/predict", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandlePredict(w, req)

	want := `[{"type":"CASH_OUT","step":3,"oldbalanceOrg":10,"prediction":0}]`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if v := w.Header().Get("X-Artifact-Version"); v != "v-mock" {
		t.Errorf("X-Artifact-Version = %q, want v-mock", v)
	}
}

func TestHandlePredict_BundledArtifacts(t *testing.T) {
	src := artifactstore.NewDirSource(filepath.Join("..", "..", "..", "artifacts"), "")
	bundle, err := artifactstore.Load(context.Background(), src, artifactstore.LoadOptions{VerifyDigests: true})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	pipeline, err := prediction.NewPipeline(bundle.Artifacts)
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}
	handler := NewPredictionHandler(pipeline, 0)

	body := []byte(`{"step":1,"type":"TRANSFER","amount":1000,"nameOrig":"C123","oldbalanceOrg":5000,"newbalanceOrig":4000,"nameDest":"M456","oldbalanceDest":0,"newbalanceDest":1000}`)
	req := httptest.NewRequest(http.MethodPost, "/fraud/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandlePredict(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var records []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if _, ok := records[0]["oldbalanceOrg"]; !ok {
		t.Error("response lost the caller's field names")
	}
	if p, ok := records[0]["prediction"].(float64); !ok || (p != 0 && p != 1) {
		t.Errorf("prediction = %v, want 0 or 1", records[0]["prediction"])
	}
}
