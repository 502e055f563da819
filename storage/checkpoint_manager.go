package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flow-trainer/core/models"
	"flow-trainer/logging"

	"github.com/google/uuid"
)

// ErrNoCheckpoint is returned when a run has no recorded checkpoint
var ErrNoCheckpoint = errors.New("no checkpoint found")

// ArtifactRecords stores artifact rows for runs
type ArtifactRecords interface {
	CreateArtifact(ctx context.Context, runID string, artifactType models.ArtifactType, uri string, meta map[string]interface{}) error
	GetRunArtifacts(ctx context.Context, runID string, artifactType *models.ArtifactType) ([]models.RunArtifact, error)
}

// Uploader copies a local file to remote storage and returns its URI
type Uploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
}

// CheckpointManager manages checkpoint storage and retrieval
type CheckpointManager struct {
	artifacts ArtifactRecords
	uploader  Uploader
	now       func() time.Time
}

// NewCheckpointManager creates a new checkpoint manager. uploader may be nil.
func NewCheckpointManager(artifacts ArtifactRecords, uploader Uploader) *CheckpointManager {
	return &CheckpointManager{
		artifacts: artifacts,
		uploader:  uploader,
		now:       time.Now,
	}
}

// SaveCheckpoint records a persisted model artifact and offloads it when an
// uploader is configured
func (cm *CheckpointManager) SaveCheckpoint(ctx context.Context, runID, path string, epoch int, valLoss float64) error {
	meta := map[string]interface{}{
		"epoch":    epoch,
		"val_loss": valLoss,
		"saved_at": cm.now().UTC().Format(time.RFC3339),
	}
	return cm.record(ctx, runID, models.ArtifactTypeCheckpoint, path, meta)
}

// SaveSummary records the run summary file
func (cm *CheckpointManager) SaveSummary(ctx context.Context, runID, path string) error {
	meta := map[string]interface{}{
		"saved_at": cm.now().UTC().Format(time.RFC3339),
	}
	return cm.record(ctx, runID, models.ArtifactTypeSummary, path, meta)
}

// SaveDataset records a dataset written for a run
func (cm *CheckpointManager) SaveDataset(ctx context.Context, runID, path string, examples int) error {
	meta := map[string]interface{}{
		"examples": examples,
	}
	return cm.record(ctx, runID, models.ArtifactTypeDataset, path, meta)
}

func (cm *CheckpointManager) record(ctx context.Context, runID string, artifactType models.ArtifactType, path string, meta map[string]interface{}) error {
	if err := cm.artifacts.CreateArtifact(ctx, runID, artifactType, path, meta); err != nil {
		return fmt.Errorf("failed to record %s artifact: %w", artifactType, err)
	}
	if cm.uploader == nil {
		return nil
	}

	key := ObjectKey(runID, path)
	uri, err := cm.uploader.Upload(ctx, key, path)
	if err != nil {
		return fmt.Errorf("failed to offload %s artifact: %w", artifactType, err)
	}
	logging.Debug("Artifact offloaded", logging.Storage, "run_id", runID, "type", artifactType, "uri", uri)

	remoteMeta := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		remoteMeta[k] = v
	}
	remoteMeta["local_path"] = path

	if err := cm.artifacts.CreateArtifact(ctx, runID, artifactType, uri, remoteMeta); err != nil {
		return fmt.Errorf("failed to record offloaded %s artifact: %w", artifactType, err)
	}
	return nil
}

// ObjectKey returns the remote key of a run file: <runIdHex>/<file name>
func ObjectKey(runID, path string) string {
	prefix := strings.ReplaceAll(runID, "-", "")
	if id, err := uuid.Parse(runID); err == nil {
		prefix = hex.EncodeToString(id[:])
	}
	return prefix + "/" + filepath.Base(path)
}

// GetLatestCheckpoint retrieves the URI of the checkpoint with the highest epoch.
// Offloaded copies win over local ones for the same epoch.
func (cm *CheckpointManager) GetLatestCheckpoint(ctx context.Context, runID string) (string, error) {
	artifacts, err := cm.ListCheckpoints(ctx, runID)
	if err != nil {
		return "", err
	}

	var latestCheckpoint string
	latestEpoch := -1
	latestRemote := false
	latestTime := time.Time{}

	for _, artifact := range artifacts {
		epoch, ok := artifact.MetaJSON["epoch"].(float64)
		if !ok {
			// rows without an epoch fall back to recency
			if latestEpoch < 0 && artifact.CreatedAt.After(latestTime) {
				latestTime = artifact.CreatedAt
				latestCheckpoint = artifact.URI
			}
			continue
		}

		remote := strings.Contains(artifact.URI, "://")
		if int(epoch) > latestEpoch || (int(epoch) == latestEpoch && remote && !latestRemote) {
			latestEpoch = int(epoch)
			latestRemote = remote
			latestCheckpoint = artifact.URI
		}
	}

	if latestCheckpoint == "" {
		return "", fmt.Errorf("%w for run %s", ErrNoCheckpoint, runID)
	}

	return latestCheckpoint, nil
}

// ListCheckpoints lists all checkpoints for a run
func (cm *CheckpointManager) ListCheckpoints(ctx context.Context, runID string) ([]models.RunArtifact, error) {
	checkpointType := models.ArtifactTypeCheckpoint
	return cm.artifacts.GetRunArtifacts(ctx, runID, &checkpointType)
}
