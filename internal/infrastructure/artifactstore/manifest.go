// Package artifactstore locates, verifies and decodes the fitted artifact
// set a prediction pipeline serves with.
package artifactstore

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Roles of the three artifacts in a set.
const (
	RoleEncoder    = "encoder"
	RoleScaler     = "scaler"
	RoleClassifier = "classifier"
)

var ErrInvalidManifest = errors.New("invalid artifact manifest")

// Entry locates one artifact payload.
type Entry struct {
	File   string `yaml:"file" json:"file"`
	Kind   string `yaml:"kind" json:"kind"`
	Digest string `yaml:"digest,omitempty" json:"digest,omitempty"`
}

// Manifest describes a versioned artifact set.
type Manifest struct {
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Encoder     Entry  `yaml:"encoder" json:"encoder"`
	Scaler      Entry  `yaml:"scaler" json:"scaler"`
	Classifier  Entry  `yaml:"classifier" json:"classifier"`
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Entries returns the artifact entries keyed by role.
func (m *Manifest) Entries() map[string]Entry {
	return map[string]Entry{
		RoleEncoder:    m.Encoder,
		RoleScaler:     m.Scaler,
		RoleClassifier: m.Classifier,
	}
}

// Validate checks that every role is present and digests are well formed.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidManifest)
	}
	for role, e := range m.Entries() {
		if e.File == "" {
			return fmt.Errorf("%w: %s.file is required", ErrInvalidManifest, role)
		}
		if e.Kind == "" {
			return fmt.Errorf("%w: %s.kind is required", ErrInvalidManifest, role)
		}
		if e.Digest != "" && !validDigest(e.Digest) {
			return fmt.Errorf("%w: %s.digest is not a %s hex digest", ErrInvalidManifest, role, DigestAlgorithm)
		}
	}
	return nil
}
