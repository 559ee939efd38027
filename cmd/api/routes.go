package main

import (
	"log"
	"net/http"

	httphandlers "fraudserve/internal/interfaces/http"
	"fraudserve/internal/shared/config"
	"fraudserve/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", httphandlers.HandleHome)
	mux.HandleFunc("/health", httphandlers.HandleHealth)
	mux.HandleFunc("/artifacts", deps.ArtifactHandler.HandleArtifacts)
	mux.HandleFunc("/fraud/predict", deps.PredictionHandler.HandlePredict)

	// Apply global middleware, outermost first in reading order
	var handler http.Handler = mux
	handler = middleware.Telemetry("fraudserve-api")(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}
