package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flow-trainer/core/models"
)

// RunRepository handles database operations for runs
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, command_line, revision, data_path, output_dir, file_name,
			options_json, status, epochs, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.CommandLine,
		run.Revision,
		run.DataPath,
		run.OutputDir,
		run.FileName,
		string(optionsJSON),
		run.Status,
		run.Epochs,
		run.CreatedAt,
		time.Now(),
	)
	return err
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, command_line, revision, data_path, output_dir, file_name,
			options_json, status, epochs, best_val_loss, train_seconds,
			created_at, finished_at
		FROM runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs, newest first, with an optional status filter
func (r *RunRepository) ListRuns(ctx context.Context, status *models.RunStatus, limit int) ([]*models.Run, error) {
	query := `
		SELECT id, command_line, revision, data_path, output_dir, file_name,
			options_json, status, epochs, best_val_loss, train_seconds,
			created_at, finished_at
		FROM runs
	`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FinishRun records the terminal state of a run
func (r *RunRepository) FinishRun(ctx context.Context, runID string, status models.RunStatus, epochs int, bestValLoss *float64, trainSeconds float64) error {
	query := `
		UPDATE runs
		SET status = $1, epochs = $2, best_val_loss = $3, train_seconds = $4,
			finished_at = NOW(), updated_at = NOW()
		WHERE id = $5
	`

	var best sql.NullFloat64
	if bestValLoss != nil {
		best = sql.NullFloat64{Float64: *bestValLoss, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, status, epochs, best, trainSeconds, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var optionsJSON string
	var bestValLoss sql.NullFloat64
	var trainSeconds sql.NullFloat64
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.CommandLine,
		&run.Revision,
		&run.DataPath,
		&run.OutputDir,
		&run.FileName,
		&optionsJSON,
		&run.Status,
		&run.Epochs,
		&bestValLoss,
		&trainSeconds,
		&run.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &run.Options); err != nil {
			return nil, fmt.Errorf("run %s: failed to decode options: %w", run.ID, err)
		}
	}
	if bestValLoss.Valid {
		run.BestValLoss = &bestValLoss.Float64
	}
	if trainSeconds.Valid {
		run.TrainSeconds = &trainSeconds.Float64
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}
