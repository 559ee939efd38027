package artifactstore

import (
	"context"
	"fmt"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/infrastructure/sklearn"
)

// LoadOptions controls how an artifact set is loaded.
type LoadOptions struct {
	VerifyDigests bool
}

// Bundle is a loaded artifact set together with the manifest describing it.
type Bundle struct {
	Manifest  *Manifest
	Artifacts prediction.Artifacts
}

// Load reads the manifest from src, verifies and decodes each artifact.
// Entries without a digest are rejected when digests are verified.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Bundle, error) {
	m, err := src.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	payloads := make(map[string][]byte, 3)
	for role, entry := range m.Entries() {
		data, err := src.Open(ctx, role, entry)
		if err != nil {
			return nil, err
		}
		if opts.VerifyDigests {
			if entry.Digest == "" {
				return nil, fmt.Errorf("%w: %s has no digest", ErrDigestMismatch, role)
			}
			if err := VerifyDigest(data, entry.Digest); err != nil {
				return nil, fmt.Errorf("%s artifact %s: %w", role, entry.File, err)
			}
		}
		payloads[role] = data
	}

	enc, err := sklearn.DecodeEncoder(m.Encoder.Kind, payloads[RoleEncoder])
	if err != nil {
		return nil, err
	}
	sc, err := sklearn.DecodeScaler(m.Scaler.Kind, payloads[RoleScaler])
	if err != nil {
		return nil, err
	}
	cl, err := sklearn.DecodeClassifier(m.Classifier.Kind, payloads[RoleClassifier])
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Manifest: m,
		Artifacts: prediction.Artifacts{
			Version:    m.Version,
			Encoder:    enc,
			Scaler:     sc,
			Classifier: cl,
		},
	}, nil
}

// Info summarizes a loaded bundle for the artifacts endpoint and CLI.
type Info struct {
	Version         string           `json:"version"`
	Description     string           `json:"description,omitempty"`
	DigestAlgorithm string           `json:"digest_algorithm"`
	Artifacts       map[string]Entry `json:"artifacts"`
	ModelColumns    []string         `json:"model_columns"`
	FeatureNames    []string         `json:"classifier_feature_names,omitempty"`
	Compatible      bool             `json:"compatible"`
}

// Info describes the bundle without exposing payloads.
func (b *Bundle) Info() Info {
	return Info{
		Version:         b.Manifest.Version,
		Description:     b.Manifest.Description,
		DigestAlgorithm: DigestAlgorithm,
		Artifacts:       b.Manifest.Entries(),
		ModelColumns:    prediction.ModelColumns[:],
		FeatureNames:    b.Artifacts.Classifier.FeatureNames(),
		Compatible:      prediction.CheckClassifierColumns(b.Artifacts.Classifier) == nil,
	}
}
