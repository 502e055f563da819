package monitoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"flow-trainer/core/models"
)

type stubRuns struct {
	runs []*models.Run
	err  error
}

func (s stubRuns) ListRuns(ctx context.Context, status *models.RunStatus, limit int) ([]*models.Run, error) {
	return s.runs, s.err
}

type stubEpochs map[string]models.EpochRecord

func (s stubEpochs) LatestEpochs(ctx context.Context) (map[string]models.EpochRecord, error) {
	return s, nil
}

func float(v float64) *float64 { return &v }

func fixture() (stubRuns, stubEpochs) {
	runs := stubRuns{runs: []*models.Run{
		{ID: "b", Status: models.RunStatusRunning},
		{ID: "a", Status: models.RunStatusCompleted, Epochs: 20, BestValLoss: float(0.125), TrainSeconds: float(42)},
	}}
	epochs := stubEpochs{
		"b": {Epoch: 3, TrainLoss: 1.5, ValLoss: 2, TestLoss: 2.5, BestValLoss: 1.75},
	}
	return runs, epochs
}

func TestGetPrometheusMetrics(t *testing.T) {
	runs, epochs := fixture()
	me := NewMetricsExporter(runs, epochs)

	out, err := me.GetPrometheusMetrics(context.Background())
	require.NoError(t, err)

	require.Contains(t, out, `flowtrain_runs{status="completed"} 1`)
	require.Contains(t, out, `flowtrain_runs{status="running"} 1`)
	require.Contains(t, out, `flowtrain_run_epochs{run_id="a",status="completed"} 20`)
	require.Contains(t, out, `flowtrain_run_epochs{run_id="b",status="running"} 3`)
	require.Contains(t, out, `flowtrain_run_loss{run_id="b",split="val"} 2`)
	require.Contains(t, out, `flowtrain_run_best_val_loss{run_id="a"} 0.125`)
	require.Contains(t, out, `flowtrain_run_best_val_loss{run_id="b"} 1.75`)
	require.Contains(t, out, `flowtrain_run_train_seconds{run_id="a"} 42`)
	require.NotContains(t, out, `flowtrain_run_train_seconds{run_id="b"}`)

	// runs are emitted in ID order
	require.Less(t, strings.Index(out, `run_id="a",status`), strings.Index(out, `run_id="b",status`))
}

func TestStatusCounts(t *testing.T) {
	runs, epochs := fixture()
	me := NewMetricsExporter(runs, epochs)

	counts, err := me.StatusCounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.RunStatusRunning])
	require.Equal(t, 1, counts[models.RunStatusCompleted])
	require.Equal(t, 0, counts[models.RunStatusFailed])
}

func TestMetricsListError(t *testing.T) {
	me := NewMetricsExporter(stubRuns{err: errors.New("db down")}, stubEpochs{})

	_, err := me.GetPrometheusMetrics(context.Background())
	require.ErrorContains(t, err, "db down")
}
