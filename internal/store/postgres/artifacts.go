package postgres

import (
	"context"
	"fmt"

	"leadrunner/internal/store"

	"github.com/google/uuid"
)

// CreateArtifact records a stored artifact for a run.
func (s *Store) CreateArtifact(ctx context.Context, a *store.Artifact) error {
	query := `
		INSERT INTO artifacts (id, run_id, name, path, size_bytes, digest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.RunID, a.Name, a.Path, a.SizeBytes, a.Digest, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", a.Name, err)
	}

	return nil
}

// GetArtifactByID returns an artifact by its ID.
func (s *Store) GetArtifactByID(ctx context.Context, id uuid.UUID) (*store.Artifact, error) {
	query := `
		SELECT id, run_id, name, path, size_bytes, digest, created_at
		FROM artifacts
		WHERE id = $1
	`

	var a store.Artifact
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.RunID, &a.Name, &a.Path, &a.SizeBytes, &a.Digest, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// ListArtifactsByRun returns all artifacts attached to a run.
func (s *Store) ListArtifactsByRun(ctx context.Context, runID uuid.UUID) ([]store.Artifact, error) {
	query := `
		SELECT id, run_id, name, path, size_bytes, digest, created_at
		FROM artifacts
		WHERE run_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []store.Artifact
	for rows.Next() {
		var a store.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.Name, &a.Path, &a.SizeBytes, &a.Digest, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}
