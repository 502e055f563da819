package repository

import (
	"context"

	"flow-trainer/core/models"
)

// Registry records training runs and their progress
type Registry struct {
	runs   *RunRepository
	epochs *EpochRepository
}

// NewRegistry creates a registry backed by db
func NewRegistry(db *DB) *Registry {
	return &Registry{
		runs:   NewRunRepository(db),
		epochs: NewEpochRepository(db),
	}
}

// CreateRun inserts a new run
func (r *Registry) CreateRun(ctx context.Context, run *models.Run) error {
	return r.runs.CreateRun(ctx, run)
}

// RecordEpoch stores the progress of one epoch
func (r *Registry) RecordEpoch(ctx context.Context, runID string, record models.EpochRecord) error {
	return r.epochs.RecordEpoch(ctx, runID, record)
}

// FinishRun records the terminal state of a run
func (r *Registry) FinishRun(ctx context.Context, runID string, status models.RunStatus, epochs int, bestValLoss *float64, trainSeconds float64) error {
	return r.runs.FinishRun(ctx, runID, status, epochs, bestValLoss, trainSeconds)
}
