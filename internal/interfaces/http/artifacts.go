package http

import (
	"net/http"

	"fraudserve/internal/infrastructure/artifactstore"
)

// ArtifactHandler describes the artifact set the service was started with.
type ArtifactHandler struct {
	info artifactstore.Info
}

func NewArtifactHandler(info artifactstore.Info) *ArtifactHandler {
	return &ArtifactHandler{info: info}
}

// HandleArtifacts returns manifest metadata, never payloads.
func (h *ArtifactHandler) HandleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.info)
}
