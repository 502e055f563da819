package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"flow-trainer/core/models"
)

// ArtifactRepository handles database operations for run artifacts
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// GetRunArtifacts retrieves artifacts for a run, newest first
func (r *ArtifactRepository) GetRunArtifacts(ctx context.Context, runID string, artifactType *models.ArtifactType) ([]models.RunArtifact, error) {
	query := `
		SELECT id, run_id, type, uri, created_at, meta_json
		FROM run_artifacts
		WHERE run_id = $1
	`
	args := []interface{}{runID}
	argIndex := 2

	if artifactType != nil {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, *artifactType)
		argIndex++
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.RunArtifact
	for rows.Next() {
		var artifact models.RunArtifact
		var metaJSON string

		err := rows.Scan(
			&artifact.ID,
			&artifact.RunID,
			&artifact.Type,
			&artifact.URI,
			&artifact.CreatedAt,
			&metaJSON,
		)
		if err != nil {
			return nil, err
		}

		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &artifact.MetaJSON); err != nil {
				return nil, fmt.Errorf("artifact %d: failed to decode meta: %w", artifact.ID, err)
			}
		}

		artifacts = append(artifacts, artifact)
	}

	return artifacts, rows.Err()
}

// CreateArtifact creates a new artifact record
func (r *ArtifactRepository) CreateArtifact(ctx context.Context, runID string, artifactType models.ArtifactType, uri string, meta map[string]interface{}) error {
	metaJSON := "{}"
	if meta != nil {
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode artifact meta: %w", err)
		}
		metaJSON = string(metaBytes)
	}

	query := `
		INSERT INTO run_artifacts (run_id, type, uri, meta_json, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := r.db.ExecContext(ctx, query, runID, artifactType, uri, metaJSON)
	return err
}
