package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"flow-trainer/core/models"
)

// maxExportedRuns bounds the number of runs scanned per scrape
const maxExportedRuns = 1000

// RunLister lists registered runs
type RunLister interface {
	ListRuns(ctx context.Context, status *models.RunStatus, limit int) ([]*models.Run, error)
}

// EpochSource returns the latest recorded epoch per run
type EpochSource interface {
	LatestEpochs(ctx context.Context) (map[string]models.EpochRecord, error)
}

// RunMetrics is the exported view of one run
type RunMetrics struct {
	Run    *models.Run
	Latest *models.EpochRecord
}

// MetricsExporter exports run metrics for Prometheus/Grafana
type MetricsExporter struct {
	runs   RunLister
	epochs EpochSource
}

// NewMetricsExporter creates a new metrics exporter
func NewMetricsExporter(runs RunLister, epochs EpochSource) *MetricsExporter {
	return &MetricsExporter{
		runs:   runs,
		epochs: epochs,
	}
}

// Collect gathers the runs with their latest epoch, ordered by run ID
func (me *MetricsExporter) Collect(ctx context.Context) ([]RunMetrics, error) {
	runs, err := me.runs.ListRuns(ctx, nil, maxExportedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	latest, err := me.epochs.LatestEpochs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest epochs: %w", err)
	}

	out := make([]RunMetrics, 0, len(runs))
	for _, run := range runs {
		m := RunMetrics{Run: run}
		if rec, ok := latest[run.ID]; ok {
			rec := rec
			m.Latest = &rec
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Run.ID < out[j].Run.ID })
	return out, nil
}

// StatusCounts returns the number of runs in each status
func (me *MetricsExporter) StatusCounts(ctx context.Context) (map[models.RunStatus]int, error) {
	runs, err := me.runs.ListRuns(ctx, nil, maxExportedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	counts := map[models.RunStatus]int{
		models.RunStatusRunning:      0,
		models.RunStatusStoppedEarly: 0,
		models.RunStatusCompleted:    0,
		models.RunStatusFailed:       0,
	}
	for _, run := range runs {
		counts[run.Status]++
	}
	return counts, nil
}

// GetPrometheusMetrics returns metrics in Prometheus text format
func (me *MetricsExporter) GetPrometheusMetrics(ctx context.Context) (string, error) {
	metrics, err := me.Collect(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	counts := make(map[models.RunStatus]int)
	for _, m := range metrics {
		counts[m.Run.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	b.WriteString("# HELP flowtrain_runs Number of runs by status\n")
	b.WriteString("# TYPE flowtrain_runs gauge\n")
	for _, status := range statuses {
		fmt.Fprintf(&b, "flowtrain_runs{status=\"%s\"} %d\n", status, counts[models.RunStatus(status)])
	}

	b.WriteString("# HELP flowtrain_run_epochs Epochs completed per run\n")
	b.WriteString("# TYPE flowtrain_run_epochs gauge\n")
	for _, m := range metrics {
		epochs := m.Run.Epochs
		if m.Latest != nil && m.Latest.Epoch > epochs {
			epochs = m.Latest.Epoch
		}
		fmt.Fprintf(&b, "flowtrain_run_epochs{run_id=\"%s\",status=\"%s\"} %d\n", m.Run.ID, m.Run.Status, epochs)
	}

	b.WriteString("# HELP flowtrain_run_loss Latest epoch loss per run and split\n")
	b.WriteString("# TYPE flowtrain_run_loss gauge\n")
	for _, m := range metrics {
		if m.Latest == nil {
			continue
		}
		fmt.Fprintf(&b, "flowtrain_run_loss{run_id=\"%s\",split=\"train\"} %g\n", m.Run.ID, m.Latest.TrainLoss)
		fmt.Fprintf(&b, "flowtrain_run_loss{run_id=\"%s\",split=\"val\"} %g\n", m.Run.ID, m.Latest.ValLoss)
		fmt.Fprintf(&b, "flowtrain_run_loss{run_id=\"%s\",split=\"test\"} %g\n", m.Run.ID, m.Latest.TestLoss)
	}

	b.WriteString("# HELP flowtrain_run_best_val_loss Best validation loss per run\n")
	b.WriteString("# TYPE flowtrain_run_best_val_loss gauge\n")
	for _, m := range metrics {
		switch {
		case m.Run.BestValLoss != nil:
			fmt.Fprintf(&b, "flowtrain_run_best_val_loss{run_id=\"%s\"} %g\n", m.Run.ID, *m.Run.BestValLoss)
		case m.Latest != nil:
			fmt.Fprintf(&b, "flowtrain_run_best_val_loss{run_id=\"%s\"} %g\n", m.Run.ID, m.Latest.BestValLoss)
		}
	}

	b.WriteString("# HELP flowtrain_run_train_seconds Wall-clock training time of finished runs\n")
	b.WriteString("# TYPE flowtrain_run_train_seconds gauge\n")
	for _, m := range metrics {
		if m.Run.TrainSeconds != nil {
			fmt.Fprintf(&b, "flowtrain_run_train_seconds{run_id=\"%s\"} %g\n", m.Run.ID, *m.Run.TrainSeconds)
		}
	}

	return b.String(), nil
}
