package main

import (
	"context"
	"log"
	"time"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/infrastructure/postgres"
	"fraudserve/internal/infrastructure/postgres/listener"
	httphandlers "fraudserve/internal/interfaces/http"
	"fraudserve/internal/shared/bootstrap"
	"fraudserve/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Artifacts *bootstrap.Artifacts
	Pipeline  *prediction.Pipeline

	// Handlers
	PredictionHandler *httphandlers.PredictionHandler
	ArtifactHandler   *httphandlers.ArtifactHandler

	// Listener is nil unless artifacts come from postgres with watching on.
	Listener *listener.PublishListener
}

// NewDependencies loads the artifact set and initializes all components.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	artifacts, err := bootstrap.LoadArtifacts(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pipeline, err := bootstrap.NewPipeline(cfg, artifacts)
	if err != nil {
		artifacts.Close()
		return nil, err
	}
	log.Printf("Serving %s", pipeline)

	deps := &Dependencies{
		Artifacts:         artifacts,
		Pipeline:          pipeline,
		PredictionHandler: httphandlers.NewPredictionHandler(pipeline, cfg.Server.MaxBodyBytes),
		ArtifactHandler:   httphandlers.NewArtifactHandler(artifacts.Bundle.Info()),
	}

	if artifacts.DB != nil && cfg.Artifacts.WatchPublished {
		serving := pipeline.Version()
		deps.Listener = listener.NewPublishListener(cfg.Database.ConnectionString(), func(n postgres.PublishNotification) {
			if n.Version == serving {
				return
			}
			log.Printf("Artifact version %s published at %s; restart to serve it (serving %s)",
				n.Version, n.PublishedAt.Format(time.RFC3339), serving)
		})
		deps.Listener.Start(ctx)
	}

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Listener != nil {
		d.Listener.Stop()
	}
	if d.Artifacts != nil {
		d.Artifacts.Close()
	}
}
