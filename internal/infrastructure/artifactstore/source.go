package artifactstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultManifestName is the manifest file name inside an artifact directory.
const DefaultManifestName = "manifest.yaml"

// Source provides a manifest and the payloads it names.
type Source interface {
	Manifest(ctx context.Context) (*Manifest, error)
	Open(ctx context.Context, role string, entry Entry) ([]byte, error)
}

// DirSource reads an artifact set from a directory on disk.
type DirSource struct {
	Dir          string
	ManifestName string
}

func NewDirSource(dir, manifestName string) *DirSource {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	return &DirSource{Dir: dir, ManifestName: manifestName}
}

func (s *DirSource) Manifest(ctx context.Context) (*Manifest, error) {
	data, err := s.read(s.ManifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

func (s *DirSource) Open(ctx context.Context, role string, entry Entry) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.read(entry.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", role, err)
	}
	return data, nil
}

// read only accepts paths that stay inside the artifact directory.
func (s *DirSource) read(name string) ([]byte, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("path %q escapes the artifact directory", name)
	}
	return os.ReadFile(filepath.Join(s.Dir, name))
}
