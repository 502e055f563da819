package repository

import (
	"context"

	"flow-trainer/core/models"
)

// EpochRepository handles database operations for per-epoch progress
type EpochRepository struct {
	db *DB
}

// NewEpochRepository creates a new epoch repository
func NewEpochRepository(db *DB) *EpochRepository {
	return &EpochRepository{db: db}
}

// RecordEpoch stores the progress of one epoch. Re-recording an epoch replaces it.
func (r *EpochRepository) RecordEpoch(ctx context.Context, runID string, record models.EpochRecord) error {
	query := `
		INSERT INTO run_epochs (run_id, epoch, train_loss, val_loss, test_loss, best_val_loss, is_best, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, epoch) DO UPDATE SET
			train_loss = EXCLUDED.train_loss,
			val_loss = EXCLUDED.val_loss,
			test_loss = EXCLUDED.test_loss,
			best_val_loss = EXCLUDED.best_val_loss,
			is_best = EXCLUDED.is_best,
			at = EXCLUDED.at
	`

	_, err := r.db.ExecContext(ctx, query,
		runID,
		record.Epoch,
		record.TrainLoss,
		record.ValLoss,
		record.TestLoss,
		record.BestValLoss,
		record.IsBest,
		record.At,
	)
	return err
}

// GetRunEpochs retrieves the progress of a run in epoch order
func (r *EpochRepository) GetRunEpochs(ctx context.Context, runID string) ([]models.EpochRecord, error) {
	query := `
		SELECT epoch, train_loss, val_loss, test_loss, best_val_loss, is_best, at
		FROM run_epochs
		WHERE run_id = $1
		ORDER BY epoch ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var epochs []models.EpochRecord
	for rows.Next() {
		var rec models.EpochRecord
		err := rows.Scan(
			&rec.Epoch,
			&rec.TrainLoss,
			&rec.ValLoss,
			&rec.TestLoss,
			&rec.BestValLoss,
			&rec.IsBest,
			&rec.At,
		)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, rec)
	}

	return epochs, rows.Err()
}

// LatestEpochs returns the most recent epoch of every run that has one
func (r *EpochRepository) LatestEpochs(ctx context.Context) (map[string]models.EpochRecord, error) {
	query := `
		SELECT DISTINCT ON (run_id) run_id, epoch, train_loss, val_loss, test_loss, best_val_loss, is_best, at
		FROM run_epochs
		ORDER BY run_id, epoch DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]models.EpochRecord)
	for rows.Next() {
		var runID string
		var rec models.EpochRecord
		err := rows.Scan(
			&runID,
			&rec.Epoch,
			&rec.TrainLoss,
			&rec.ValLoss,
			&rec.TestLoss,
			&rec.BestValLoss,
			&rec.IsBest,
			&rec.At,
		)
		if err != nil {
			return nil, err
		}
		latest[runID] = rec
	}

	return latest, rows.Err()
}
