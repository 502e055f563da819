package evaluation

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"flow-trainer/core/models"
)

// constantPredictor predicts the initial state at every time
type constantPredictor struct{}

func (constantPredictor) Predict(x0, t []float64, u [][]float64) ([][]float64, error) {
	out := make([][]float64, len(t))
	for k := range out {
		out[k] = append([]float64(nil), x0...)
	}
	return out, nil
}

func TestHorizons(t *testing.T) {
	require.Equal(t, []float64{10, 40, 70, 100}, Horizons(10, 100, 4))
	require.Equal(t, []float64{10}, Horizons(10, 100, 1))
	require.Nil(t, Horizons(10, 100, 0))
}

func TestTimeHorizonMSE(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	opts.TimeHorizon = 10
	cfg := Config{TMax: 20, NSteps: 3, NMC: 4}

	points, err := TimeHorizonMSE(context.Background(), constantPredictor{}, opts, cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, points, 12)
	require.Equal(t, 10.0, points[0].TimeHorizon)
	require.Equal(t, 20.0, points[11].TimeHorizon)
	for _, p := range points {
		require.Greater(t, p.Loss, 0.0)
	}

	means := MeanByHorizon(points)
	require.Len(t, means, 3)
	require.Equal(t, []float64{10, 15, 20}, []float64{means[0].TimeHorizon, means[1].TimeHorizon, means[2].TimeHorizon})
}

func TestTimeHorizonMSERejectsBadConfig(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	_, err := TimeHorizonMSE(context.Background(), constantPredictor{}, opts, Config{TMax: 10, NSteps: 0, NMC: 1}, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTimeHorizonMSEHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TimeHorizonMSE(ctx, constantPredictor{}, models.DefaultTrainingOptions(), DefaultConfig(), rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMeanByHorizon(t *testing.T) {
	means := MeanByHorizon([]Point{{1, 2}, {1, 4}, {2, 1}, {2, 3}, {2, 5}})
	require.Equal(t, []Point{{1, 3}, {2, 3}}, means)
	require.Nil(t, MeanByHorizon(nil))
}

func TestCSVRoundTrip(t *testing.T) {
	path := CSVPath(t.TempDir(), "abc")
	require.Equal(t, CSVPrefix+"abc.csv", filepath.Base(path))

	points := []Point{{10, 0.5}, {10, 0.25}, {55.5, 1e-3}}
	require.NoError(t, WriteCSV(path, points))

	read, err := ReadCSV(path)
	require.NoError(t, err)
	require.Equal(t, points, read)
}
