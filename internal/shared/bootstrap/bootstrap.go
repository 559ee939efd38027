// Package bootstrap wires the artifact source and pipeline from config for
// every binary.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/infrastructure/artifactstore"
	"fraudserve/internal/infrastructure/postgres"
	"fraudserve/internal/shared/config"
)

// Artifacts is a loaded bundle plus the database handle backing it, if any.
type Artifacts struct {
	Bundle *artifactstore.Bundle
	// DB is nil for the file source.
	DB *postgres.DB
}

// Close releases the database handle.
func (a *Artifacts) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// OpenSource returns the configured artifact source. The DB is nil unless
// the source is postgres; callers own closing it.
func OpenSource(cfg *config.Config) (artifactstore.Source, *postgres.DB, error) {
	switch cfg.Artifacts.Source {
	case config.ArtifactSourcePostgres:
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		log.Println("Connected to database")
		return postgres.NewArtifactRepository(db, cfg.Artifacts.Version), db, nil
	case config.ArtifactSourceFile, "":
		return artifactstore.NewDirSource(cfg.Artifacts.Dir, cfg.Artifacts.Manifest), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown artifact source %q", cfg.Artifacts.Source)
}

// LoadArtifacts opens the configured source and loads the artifact set once.
func LoadArtifacts(ctx context.Context, cfg *config.Config) (*Artifacts, error) {
	src, db, err := OpenSource(cfg)
	if err != nil {
		return nil, err
	}

	bundle, err := artifactstore.Load(ctx, src, artifactstore.LoadOptions{VerifyDigests: cfg.Artifacts.VerifyDigests})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to load artifacts from %s source: %w", cfg.Artifacts.Source, err)
	}

	if !cfg.Artifacts.VerifyDigests {
		log.Println("Warning: artifact digest verification is disabled")
	}
	log.Printf("Loaded artifacts version %s", bundle.Manifest.Version)
	log.Printf("Model features: %v", bundle.Artifacts.Classifier.FeatureNames())
	if err := prediction.CheckClassifierColumns(bundle.Artifacts.Classifier); err != nil {
		log.Printf("Warning: %v", err)
	}

	return &Artifacts{Bundle: bundle, DB: db}, nil
}

// NewPipeline builds a pipeline over the loaded bundle.
func NewPipeline(cfg *config.Config, a *Artifacts) (*prediction.Pipeline, error) {
	var opts []prediction.Option
	if cfg.Debug.PipelineColumns {
		opts = append(opts, prediction.WithDebugLogger(log.New(os.Stderr, "[pipeline] ", log.LstdFlags)))
	}
	return prediction.NewPipeline(a.Bundle.Artifacts, opts...)
}
