package handlers

import (
	"context"
	"errors"
	"net/http"

	"flow-trainer/core/models"
	"flow-trainer/logging"
	"flow-trainer/storage"
)

// CheckpointLocator finds the checkpoints recorded for a run
type CheckpointLocator interface {
	GetLatestCheckpoint(ctx context.Context, runID string) (string, error)
	ListCheckpoints(ctx context.Context, runID string) ([]models.RunArtifact, error)
}

// CheckpointHandler handles checkpoint lookups
type CheckpointHandler struct {
	runs        RunStore
	checkpoints CheckpointLocator
}

// NewCheckpointHandler creates a new checkpoint handler
func NewCheckpointHandler(runs RunStore, checkpoints CheckpointLocator) *CheckpointHandler {
	return &CheckpointHandler{runs: runs, checkpoints: checkpoints}
}

// ListCheckpoints handles GET /v1/runs/{id}/checkpoints
func (h *CheckpointHandler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	run, ok := lookupRun(w, r, h.runs)
	if !ok {
		return
	}

	checkpoints, err := h.checkpoints.ListCheckpoints(r.Context(), run.ID)
	if err != nil {
		logging.Error("Failed to list checkpoints", logging.Server, "run_id", run.ID, "error", err)
		http.Error(w, "Failed to list checkpoints", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(checkpoints))
	for _, c := range checkpoints {
		items = append(items, map[string]interface{}{
			"uri":        c.URI,
			"epoch":      c.MetaJSON["epoch"],
			"val_loss":   c.MetaJSON["val_loss"],
			"created_at": c.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":      run.ID,
		"checkpoints": items,
	})
}

// GetLatestCheckpoint handles GET /v1/runs/{id}/checkpoints/latest
func (h *CheckpointHandler) GetLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	run, ok := lookupRun(w, r, h.runs)
	if !ok {
		return
	}

	uri, err := h.checkpoints.GetLatestCheckpoint(r.Context(), run.ID)
	if errors.Is(err, storage.ErrNoCheckpoint) {
		http.Error(w, "No checkpoint for run", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get latest checkpoint", logging.Server, "run_id", run.ID, "error", err)
		http.Error(w, "Failed to get latest checkpoint", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"uri":    uri,
	})
}
