package handlers

import (
	"context"
	"net/http"

	"flow-trainer/core/models"
	"flow-trainer/logging"
)

// MetricsSource produces run metrics
type MetricsSource interface {
	GetPrometheusMetrics(ctx context.Context) (string, error)
	StatusCounts(ctx context.Context) (map[models.RunStatus]int, error)
}

// DashboardHandler handles metrics and dashboard requests
type DashboardHandler struct {
	metrics MetricsSource
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(metrics MetricsSource) *DashboardHandler {
	return &DashboardHandler{metrics: metrics}
}

// GetMetrics handles GET /metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	out, err := h.metrics.GetPrometheusMetrics(r.Context())
	if err != nil {
		logging.Error("Failed to export metrics", logging.Server, "error", err)
		http.Error(w, "Failed to export metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// GetSummary handles GET /v1/dashboard/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.metrics.StatusCounts(r.Context())
	if err != nil {
		logging.Error("Failed to count runs", logging.Server, "error", err)
		http.Error(w, "Failed to count runs", http.StatusInternalServerError)
		return
	}

	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		total += n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     total,
		"by_status": byStatus,
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// MethodNotAllowed answers requests whose path exists under another method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
