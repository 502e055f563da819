// Package evaluation measures how a trained model extrapolates to time
// horizons longer than the one it was trained on.
package evaluation

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"flow-trainer/core/models"
	"flow-trainer/dataset"
)

// CSVPrefix prefixes the cached result file of a run
const CSVPrefix = "mse_time_horizon_"

// samplesPerDataHorizon is the number of observations per example at the
// training horizon; longer horizons get proportionally more
const samplesPerDataHorizon = 250

var csvHeader = []string{"Time horizon", "Loss"}

// ErrInvalidConfig is returned for a non-positive sweep configuration
var ErrInvalidConfig = errors.New("invalid evaluation config")

// Predictor predicts the states of one example
type Predictor interface {
	Predict(x0, t []float64, u [][]float64) ([][]float64, error)
}

// Config describes a time-horizon sweep
type Config struct {
	TMax   float64 // last horizon evaluated
	NSteps int     // number of horizons between the training horizon and TMax
	NMC    int     // Monte Carlo examples per horizon
}

// DefaultConfig returns the sweep used by the evaluate command
func DefaultConfig() Config {
	return Config{TMax: 100, NSteps: 50, NMC: 100}
}

// Point is the loss of one example at one horizon
type Point struct {
	TimeHorizon float64
	Loss        float64
}

// Horizons returns n evenly spaced horizons from start to end inclusive
func Horizons(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	step := (end - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}

// TimeHorizonMSE simulates cfg.NMC fresh trajectories per horizon with the
// generation settings in opts and records the prediction loss of each: the
// mean over observations of the summed squared error across state dimensions.
func TimeHorizonMSE(ctx context.Context, model Predictor, opts models.TrainingOptions, cfg Config, rng *rand.Rand) ([]Point, error) {
	if cfg.TMax <= 0 || cfg.NSteps <= 0 || cfg.NMC <= 0 {
		return nil, fmt.Errorf("%w: t_max, n_t_steps and n_mc must be positive", ErrInvalidConfig)
	}
	if opts.TimeHorizon <= 0 || opts.ControlDelta <= 0 {
		return nil, fmt.Errorf("%w: run has no training horizon", ErrInvalidConfig)
	}

	var points []Point
	for _, horizon := range Horizons(opts.TimeHorizon, cfg.TMax, cfg.NSteps) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nSamples := int(samplesPerDataHorizon * horizon / opts.TimeHorizon)
		if nSamples < 1 {
			nSamples = 1
		}

		for i := 0; i < cfg.NMC; i++ {
			ex, err := dataset.Trajectory(opts.ControlDelta, horizon, nSamples, rng)
			if err != nil {
				return nil, err
			}
			pred, err := model.Predict(ex.X0, ex.T, ex.U)
			if err != nil {
				return nil, fmt.Errorf("horizon %g: %w", horizon, err)
			}
			points = append(points, Point{TimeHorizon: horizon, Loss: exampleLoss(ex.Y, pred)})
		}
	}
	return points, nil
}

func exampleLoss(y, pred [][]float64) float64 {
	if len(y) == 0 {
		return 0
	}
	total := 0.0
	for k := range y {
		for d := range y[k] {
			diff := y[k][d] - pred[k][d]
			total += diff * diff
		}
	}
	return total / float64(len(y))
}

// MeanByHorizon averages the points of each horizon, keeping horizon order
func MeanByHorizon(points []Point) []Point {
	var out []Point
	var count int
	for _, p := range points {
		if len(out) == 0 || out[len(out)-1].TimeHorizon != p.TimeHorizon {
			if len(out) > 0 {
				out[len(out)-1].Loss /= float64(count)
			}
			out = append(out, Point{TimeHorizon: p.TimeHorizon})
			count = 0
		}
		out[len(out)-1].Loss += p.Loss
		count++
	}
	if len(out) > 0 {
		out[len(out)-1].Loss /= float64(count)
	}
	return out
}

// CSVPath returns the cache file of a run inside dir
func CSVPath(dir, runIDHex string) string {
	return filepath.Join(dir, CSVPrefix+runIDHex+".csv")
}

// WriteCSV writes the points with a header row
func WriteCSV(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.TimeHorizon, 'g', -1, 64),
			strconv.FormatFloat(p.Loss, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV reads points written by WriteCSV
func ReadCSV(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var points []Point
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		horizon, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad time horizon %q: %w", path, row[0], err)
		}
		loss, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad loss %q: %w", path, row[1], err)
		}
		points = append(points, Point{TimeHorizon: horizon, Loss: loss})
	}
	return points, nil
}
