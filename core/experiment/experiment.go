package experiment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flow-trainer/core/models"
	"flow-trainer/logging"

	"gopkg.in/yaml.v3"
)

// SummaryExt is the extension of the run summary written by Save
const SummaryExt = ".yaml"

// failTimeout bounds the registry update made by Fail
const failTimeout = 5 * time.Second

// Registry records runs in an external store
type Registry interface {
	CreateRun(ctx context.Context, run *models.Run) error
	RecordEpoch(ctx context.Context, runID string, record models.EpochRecord) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, epochs int, bestValLoss *float64, trainSeconds float64) error
}

// ArtifactStore is told about every file a run writes
type ArtifactStore interface {
	SaveCheckpoint(ctx context.Context, runID, path string, epoch int, valLoss float64) error
	SaveSummary(ctx context.Context, runID, path string) error
}

// Summary is the final experiment metadata written next to the model artifact
type Summary struct {
	RunID        string                 `yaml:"run_id"`
	FileName     string                 `yaml:"file_name,omitempty"`
	CommandLine  string                 `yaml:"command_line"`
	Revision     string                 `yaml:"revision"`
	DataPath     string                 `yaml:"data_path,omitempty"`
	Options      models.TrainingOptions `yaml:"options"`
	Status       models.RunStatus       `yaml:"status"`
	TrainSeconds float64                `yaml:"train_seconds"`
	Epochs       int                    `yaml:"epochs"`
	BestValLoss  *float64               `yaml:"best_val_loss,omitempty"`
	CreatedAt    time.Time              `yaml:"created_at"`
	SavedAt      *time.Time             `yaml:"saved_at,omitempty"`
	History      []models.EpochRecord   `yaml:"history"`
}

// Experiment ties a run's metadata to its progress history and to the
// optional registry and artifact store.
type Experiment struct {
	meta      *RunMetadata
	registry  Registry
	artifacts ArtifactStore

	history     []models.EpochRecord
	bestValLoss *float64
	finished    bool
}

// NewExperiment creates an experiment and registers the run.
// registry and artifacts may be nil.
func NewExperiment(ctx context.Context, meta *RunMetadata, registry Registry, artifacts ArtifactStore) (*Experiment, error) {
	e := &Experiment{
		meta:      meta,
		registry:  registry,
		artifacts: artifacts,
	}

	if registry != nil {
		if err := registry.CreateRun(ctx, meta.Record()); err != nil {
			return nil, fmt.Errorf("failed to register run: %w", err)
		}
	}

	logging.Info("Experiment started", logging.Experiment,
		"run_id", meta.IDHex(), "revision", meta.Revision(), "saving", meta.SavingEnabled())
	return e, nil
}

// Metadata returns the run metadata
func (e *Experiment) Metadata() *RunMetadata {
	return e.meta
}

// History returns a copy of the recorded epochs
func (e *Experiment) History() []models.EpochRecord {
	return append([]models.EpochRecord(nil), e.history...)
}

// BestValLoss returns the validation loss of the last best epoch, nil before any
func (e *Experiment) BestValLoss() *float64 {
	if e.bestValLoss == nil {
		return nil
	}
	v := *e.bestValLoss
	return &v
}

// SaveModel persists the model state as the run's artifact.
// It is called on every epoch that improved the best validation loss.
func (e *Experiment) SaveModel(ctx context.Context, epoch int, valLoss float64, state models.ModelState) error {
	if err := e.meta.Persist(state); err != nil {
		return err
	}
	if !e.meta.SavingEnabled() || e.artifacts == nil {
		return nil
	}

	if err := e.artifacts.SaveCheckpoint(ctx, e.meta.ID().String(), e.meta.Path(), epoch, valLoss); err != nil {
		logging.Warn("Failed to record checkpoint", logging.Experiment, "run_id", e.meta.IDHex(), "error", err)
	}
	return nil
}

// RegisterProgress appends one epoch to the history
func (e *Experiment) RegisterProgress(ctx context.Context, trainLoss, valLoss, testLoss float64, isBest bool) {
	if isBest {
		best := valLoss
		e.bestValLoss = &best
	}

	record := models.EpochRecord{
		Epoch:     len(e.history) + 1,
		TrainLoss: trainLoss,
		ValLoss:   valLoss,
		TestLoss:  testLoss,
		IsBest:    isBest,
		At:        e.meta.now().UTC(),
	}
	if e.bestValLoss != nil {
		record.BestValLoss = *e.bestValLoss
	}
	e.history = append(e.history, record)

	if e.registry != nil {
		if err := e.registry.RecordEpoch(ctx, e.meta.ID().String(), record); err != nil {
			logging.Warn("Failed to record epoch", logging.Experiment,
				"run_id", e.meta.IDHex(), "epoch", record.Epoch, "error", err)
		}
	}
}

// Save writes the final experiment metadata (summary file, registry row)
func (e *Experiment) Save(ctx context.Context, trainTime time.Duration, status models.RunStatus) error {
	e.finished = true

	summary := e.Summary(trainTime, status)
	if e.meta.SavingEnabled() {
		path := filepath.Join(e.meta.OutputDir(), e.meta.FileName()+SummaryExt)
		if err := writeSummary(path, summary); err != nil {
			return err
		}
		if e.artifacts != nil {
			if err := e.artifacts.SaveSummary(ctx, e.meta.ID().String(), path); err != nil {
				logging.Warn("Failed to record summary", logging.Experiment, "run_id", e.meta.IDHex(), "error", err)
			}
		}
	}

	if e.registry != nil {
		err := e.registry.FinishRun(ctx, e.meta.ID().String(), status, len(e.history), e.bestValLoss, trainTime.Seconds())
		if err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}

	logging.Info("Experiment finished", logging.Experiment,
		"run_id", e.meta.IDHex(), "status", status, "epochs", len(e.history), "train_time", trainTime)
	return nil
}

// Fail marks the run as failed in the registry. It is a no-op after Save.
func (e *Experiment) Fail(ctx context.Context, cause error) {
	if e.finished {
		return
	}
	e.finished = true
	logging.Error("Experiment failed", logging.Experiment, "run_id", e.meta.IDHex(), "error", cause)

	if e.registry != nil {
		// the run may have failed because ctx was cancelled
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
		defer cancel()

		if err := e.registry.FinishRun(ctx, e.meta.ID().String(), models.RunStatusFailed, len(e.history), e.bestValLoss, 0); err != nil {
			logging.Warn("Failed to mark run failed", logging.Experiment, "run_id", e.meta.IDHex(), "error", err)
		}
	}
}

// Summary builds the final experiment metadata
func (e *Experiment) Summary(trainTime time.Duration, status models.RunStatus) Summary {
	return Summary{
		RunID:        e.meta.IDHex(),
		FileName:     e.meta.FileName(),
		CommandLine:  e.meta.CommandLine(),
		Revision:     e.meta.Revision(),
		DataPath:     e.meta.DataPath(),
		Options:      e.meta.Options(),
		Status:       status,
		TrainSeconds: trainTime.Seconds(),
		Epochs:       len(e.history),
		BestValLoss:  e.BestValLoss(),
		CreatedAt:    e.meta.CreatedAt(),
		SavedAt:      e.meta.SavedAt(),
		History:      e.History(),
	}
}

// ReadSummary loads a summary written by Save
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return &s, nil
}

func writeSummary(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
