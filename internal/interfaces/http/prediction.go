package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
	"fraudserve/internal/shared/middleware"
)

// DefaultMaxBodyBytes bounds prediction request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Predictor runs the prediction pipeline.
type Predictor interface {
	Predict(ctx context.Context, records []*transaction.Record) (*prediction.Result, error)
}

type PredictionHandler struct {
	predictor    Predictor
	maxBodyBytes int64
}

func NewPredictionHandler(predictor Predictor, maxBodyBytes int64) *PredictionHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &PredictionHandler{
		predictor:    predictor,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandlePredict scores one transaction or a batch and returns the original
// records with a prediction attached.
func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, prediction.Payload{
				Error: "Request body too large",
			})
			return
		}
		log.Printf("Error reading prediction body (request %s): %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, prediction.Payload{Error: "Invalid input data"})
		return
	}

	records, err := prediction.ParseInput(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, prediction.PayloadFor(err))
		return
	}

	result, err := h.predictor.Predict(r.Context(), records)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, prediction.ErrMalformedInput) {
			status = http.StatusBadRequest
		}
		log.Printf("Error predicting %d records (request %s): %v", len(records), requestID, err)
		writeJSON(w, status, prediction.PayloadFor(err))
		return
	}

	if result.Version != "" {
		w.Header().Set(middleware.ArtifactVersionHeader, result.Version)
	}
	writeJSON(w, http.StatusOK, result)
}
