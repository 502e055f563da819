package routes

import (
	"net/http"

	"flow-trainer/api/rest/handlers"
	"flow-trainer/core/monitoring"
	"flow-trainer/core/repository"
	"flow-trainer/storage"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, db *repository.DB) {
	runRepo := repository.NewRunRepository(db)
	epochRepo := repository.NewEpochRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	runHandler := handlers.NewRunHandler(runRepo, epochRepo, artifactRepo)
	checkpointHandler := handlers.NewCheckpointHandler(runRepo, storage.NewCheckpointManager(artifactRepo, nil))
	dashboardHandler := handlers.NewDashboardHandler(monitoring.NewMetricsExporter(runRepo, epochRepo))

	api := r.PathPrefix("/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	// Run endpoints
	api.HandleFunc("/runs", runHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", runHandler.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/epochs", runHandler.GetRunEpochs).Methods("GET")
	api.HandleFunc("/runs/{id}/artifacts", runHandler.GetRunArtifacts).Methods("GET")
	api.HandleFunc("/runs/{id}/checkpoints", checkpointHandler.ListCheckpoints).Methods("GET")
	api.HandleFunc("/runs/{id}/checkpoints/latest", checkpointHandler.GetLatestCheckpoint).Methods("GET")

	// Dashboard endpoints
	api.HandleFunc("/dashboard/summary", dashboardHandler.GetSummary).Methods("GET")

	r.HandleFunc("/metrics", dashboardHandler.GetMetrics).Methods("GET")
	r.HandleFunc("/health", handlers.Health).Methods("GET")
}
