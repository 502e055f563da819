package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"flow-trainer/core/models"
	"flow-trainer/core/repository"
	"flow-trainer/logging"

	"github.com/gorilla/mux"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// RunStore reads registered runs
type RunStore interface {
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, status *models.RunStatus, limit int) ([]*models.Run, error)
}

// EpochStore reads per-epoch progress
type EpochStore interface {
	GetRunEpochs(ctx context.Context, runID string) ([]models.EpochRecord, error)
}

// ArtifactStore reads run artifacts
type ArtifactStore interface {
	GetRunArtifacts(ctx context.Context, runID string, artifactType *models.ArtifactType) ([]models.RunArtifact, error)
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	runs      RunStore
	epochs    EpochStore
	artifacts ArtifactStore
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunStore, epochs EpochStore, artifacts ArtifactStore) *RunHandler {
	return &RunHandler{
		runs:      runs,
		epochs:    epochs,
		artifacts: artifacts,
	}
}

// ListRuns handles GET /v1/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	var status *models.RunStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.RunStatus(s)
		if st != models.RunStatusRunning && !st.Finished() {
			http.Error(w, "Invalid status: "+s, http.StatusBadRequest)
			return
		}
		status = &st
	}

	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), status, limit)
	if err != nil {
		logging.Error("Failed to list runs", logging.Server, "error", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		items = append(items, runResponse(run))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  items,
		"count": len(items),
	})
}

// GetRun handles GET /v1/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := lookupRun(w, r, h.runs)
	if !ok {
		return
	}

	response := runResponse(run)
	response["options"] = run.Options
	writeJSON(w, http.StatusOK, response)
}

// GetRunEpochs handles GET /v1/runs/{id}/epochs
func (h *RunHandler) GetRunEpochs(w http.ResponseWriter, r *http.Request) {
	run, ok := lookupRun(w, r, h.runs)
	if !ok {
		return
	}

	epochs, err := h.epochs.GetRunEpochs(r.Context(), run.ID)
	if err != nil {
		logging.Error("Failed to get epochs", logging.Server, "run_id", run.ID, "error", err)
		http.Error(w, "Failed to get epochs", http.StatusInternalServerError)
		return
	}
	if epochs == nil {
		epochs = []models.EpochRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"epochs": epochs,
	})
}

// GetRunArtifacts handles GET /v1/runs/{id}/artifacts
func (h *RunHandler) GetRunArtifacts(w http.ResponseWriter, r *http.Request) {
	var artifactType *models.ArtifactType
	if t := r.URL.Query().Get("type"); t != "" {
		at := models.ArtifactType(t)
		switch at {
		case models.ArtifactTypeCheckpoint, models.ArtifactTypeSummary, models.ArtifactTypeDataset:
		default:
			http.Error(w, "Invalid artifact type: "+t, http.StatusBadRequest)
			return
		}
		artifactType = &at
	}

	run, ok := lookupRun(w, r, h.runs)
	if !ok {
		return
	}

	artifacts, err := h.artifacts.GetRunArtifacts(r.Context(), run.ID, artifactType)
	if err != nil {
		logging.Error("Failed to get artifacts", logging.Server, "run_id", run.ID, "error", err)
		http.Error(w, "Failed to get artifacts", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(artifacts))
	for _, a := range artifacts {
		items = append(items, map[string]interface{}{
			"id":         a.ID,
			"type":       a.Type,
			"uri":        a.URI,
			"meta":       a.MetaJSON,
			"created_at": a.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    run.ID,
		"artifacts": items,
	})
}

func lookupRun(w http.ResponseWriter, r *http.Request, runs RunStore) (*models.Run, bool) {
	runID := mux.Vars(r)["id"]

	run, err := runs.GetRun(r.Context(), runID)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to get run", logging.Server, "run_id", runID, "error", err)
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func runResponse(run *models.Run) map[string]interface{} {
	return map[string]interface{}{
		"id":            run.ID,
		"status":        run.Status,
		"command_line":  run.CommandLine,
		"revision":      run.Revision,
		"data_path":     run.DataPath,
		"output_dir":    run.OutputDir,
		"file_name":     run.FileName,
		"epochs":        run.Epochs,
		"best_val_loss": run.BestValLoss,
		"train_seconds": run.TrainSeconds,
		"created_at":    run.CreatedAt,
		"finished_at":   run.FinishedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", logging.Server, "error", err)
	}
}
