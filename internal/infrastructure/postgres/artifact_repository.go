package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fraudserve/internal/infrastructure/artifactstore"
)

// PublishChannel is the NOTIFY channel a new artifact version is announced on.
const PublishChannel = "model_artifacts_published"

var (
	ErrVersionNotFound = errors.New("artifact version not found")
	ErrVersionExists   = errors.New("artifact version already published")
)

const artifactSchema = `
	CREATE TABLE IF NOT EXISTS model_artifacts (
		version     TEXT NOT NULL,
		role        TEXT NOT NULL,
		file        TEXT NOT NULL,
		kind        TEXT NOT NULL,
		digest      TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payload     BYTEA NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (version, role)
	)
`

// PublishNotification is the NOTIFY payload sent after a publish.
type PublishNotification struct {
	Version     string    `json:"version"`
	PublishedAt time.Time `json:"published_at"`
}

// VersionSummary lists one published version.
type VersionSummary struct {
	Version     string
	Description string
	CreatedAt   time.Time
}

// ArtifactRepository stores versioned artifact sets in model_artifacts. Bound
// to a version, it is an artifactstore.Source.
type ArtifactRepository struct {
	db      *DB
	version string
}

func NewArtifactRepository(db *DB, version string) *ArtifactRepository {
	return &ArtifactRepository{db: db, version: version}
}

// EnsureSchema creates the artifact table when it is missing.
func (r *ArtifactRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, artifactSchema); err != nil {
		return fmt.Errorf("failed to create model_artifacts: %w", err)
	}
	return nil
}

// Manifest rebuilds the manifest of the bound version from its rows.
func (r *ArtifactRepository) Manifest(ctx context.Context) (*artifactstore.Manifest, error) {
	query := `
		SELECT role, file, kind, digest, description
		FROM model_artifacts
		WHERE version = $1
	`

	rows, err := r.db.QueryContext(ctx, query, r.version)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	m := &artifactstore.Manifest{Version: r.version}
	found := 0
	for rows.Next() {
		var role, description string
		var e artifactstore.Entry
		if err := rows.Scan(&role, &e.File, &e.Kind, &e.Digest, &description); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		switch role {
		case artifactstore.RoleEncoder:
			m.Encoder = e
		case artifactstore.RoleScaler:
			m.Scaler = e
		case artifactstore.RoleClassifier:
			m.Classifier = e
		default:
			continue
		}
		if description != "" {
			m.Description = description
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, r.version)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Open reads the payload stored for a role of the bound version.
func (r *ArtifactRepository) Open(ctx context.Context, role string, entry artifactstore.Entry) ([]byte, error) {
	query := `SELECT payload FROM model_artifacts WHERE version = $1 AND role = $2`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, r.version, role).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrVersionNotFound, r.version, role)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", role, err)
	}
	return payload, nil
}

// Publish stores a complete artifact set under m.Version and announces it on
// PublishChannel. Published versions are immutable.
func (r *ArtifactRepository) Publish(ctx context.Context, m *artifactstore.Manifest, payloads map[string][]byte) error {
	if err := m.Validate(); err != nil {
		return err
	}

	return r.db.InTx(ctx, "publish_artifacts", func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM model_artifacts WHERE version = $1)`, m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check version: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrVersionExists, m.Version)
		}

		insert := `
			INSERT INTO model_artifacts (version, role, file, kind, digest, description, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for role, e := range m.Entries() {
			data, ok := payloads[role]
			if !ok {
				return fmt.Errorf("missing payload for %s", role)
			}
			digest := e.Digest
			if digest == "" {
				digest = artifactstore.Digest(data)
			} else if err := artifactstore.VerifyDigest(data, digest); err != nil {
				return fmt.Errorf("%s artifact: %w", role, err)
			}
			if _, err := tx.ExecContext(ctx, insert, m.Version, role, e.File, e.Kind, digest, m.Description, data); err != nil {
				if IsUniqueViolation(err) {
					return fmt.Errorf("%w: %s", ErrVersionExists, m.Version)
				}
				return fmt.Errorf("failed to insert %s artifact: %w", role, err)
			}
		}

		note, err := json.Marshal(PublishNotification{Version: m.Version, PublishedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, PublishChannel, string(note)); err != nil {
			return fmt.Errorf("failed to notify: %w", err)
		}
		return nil
	})
}

// Versions lists published versions, newest first.
func (r *ArtifactRepository) Versions(ctx context.Context) ([]VersionSummary, error) {
	query := `
		SELECT version, MAX(description), MAX(created_at)
		FROM model_artifacts
		GROUP BY version
		ORDER BY MAX(created_at) DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []VersionSummary
	for rows.Next() {
		var v VersionSummary
		if err := rows.Scan(&v.Version, &v.Description, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
