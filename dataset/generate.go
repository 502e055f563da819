package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// integration substeps between two observations
const substeps = 10

// GeneratorConfig sizes a synthetic dataset
type GeneratorConfig struct {
	NTrajectories   int
	NSamples        int
	ExamplesPerTraj int
	ControlDelta    float64
	TimeHorizon     float64
}

// Generate simulates a damped oscillator driven by piecewise-constant
// controls and cuts each trajectory into random examples.
//
//	x1' = x2
//	x2' = -x1 - 0.1 x2 + u
//
// Control values change every ControlDelta and are drawn from [-1, 1].
// Examples start at a random observation and run for a random number of
// steps, so their control sequences have different lengths.
func Generate(cfg GeneratorConfig, rng *rand.Rand) (*Dataset, error) {
	switch {
	case cfg.NTrajectories <= 0, cfg.ExamplesPerTraj <= 0:
		return nil, fmt.Errorf("%w: trajectory and example counts must be positive", ErrInvalidDataset)
	case cfg.NSamples < 2:
		return nil, fmt.Errorf("%w: at least 2 samples per trajectory are required", ErrInvalidDataset)
	case cfg.ControlDelta <= 0, cfg.TimeHorizon <= 0:
		return nil, fmt.Errorf("%w: control delta and time horizon must be positive", ErrInvalidDataset)
	}

	d := &Dataset{
		ControlDelta: cfg.ControlDelta,
		TimeHorizon:  cfg.TimeHorizon,
		Examples:     make([]Example, 0, cfg.NTrajectories*cfg.ExamplesPerTraj),
	}

	for i := 0; i < cfg.NTrajectories; i++ {
		times, states, controls := simulate(cfg, rng)
		for j := 0; j < cfg.ExamplesPerTraj; j++ {
			d.Examples = append(d.Examples, cut(cfg, times, states, controls, rng))
		}
	}
	return d, nil
}

// Trajectory simulates one example that starts at time 0 and covers the
// whole horizon, observed at nSamples evenly spaced times after the start
func Trajectory(controlDelta, timeHorizon float64, nSamples int, rng *rand.Rand) (Example, error) {
	if nSamples < 1 {
		return Example{}, fmt.Errorf("%w: at least 1 sample is required", ErrInvalidDataset)
	}
	if controlDelta <= 0 || timeHorizon <= 0 {
		return Example{}, fmt.Errorf("%w: control delta and time horizon must be positive", ErrInvalidDataset)
	}

	times, states, controls := simulate(GeneratorConfig{
		NSamples:     nSamples + 1,
		ControlDelta: controlDelta,
		TimeHorizon:  timeHorizon,
	}, rng)

	ex := Example{
		X0: states[0],
		T:  times[1:],
		Y:  states[1:],
	}
	for _, u := range controls {
		ex.U = append(ex.U, []float64{u})
	}
	return ex, nil
}

func simulate(cfg GeneratorConfig, rng *rand.Rand) (times []float64, states [][]float64, controls []float64) {
	nControls := int(math.Ceil(cfg.TimeHorizon / cfg.ControlDelta))
	if nControls < 1 {
		nControls = 1
	}
	controls = make([]float64, nControls)
	for k := range controls {
		controls[k] = 2*rng.Float64() - 1
	}

	dt := cfg.TimeHorizon / float64(cfg.NSamples-1)
	h := dt / substeps

	x := []float64{2*rng.Float64() - 1, 2*rng.Float64() - 1}
	times = make([]float64, cfg.NSamples)
	states = make([][]float64, cfg.NSamples)
	states[0] = append([]float64(nil), x...)

	t := 0.0
	for k := 1; k < cfg.NSamples; k++ {
		for s := 0; s < substeps; s++ {
			u := controls[controlIndex(t, cfg.ControlDelta, nControls)]
			dx1 := x[1]
			dx2 := -x[0] - 0.1*x[1] + u
			x[0] += h * dx1
			x[1] += h * dx2
			t += h
		}
		times[k] = float64(k) * dt
		states[k] = append([]float64(nil), x...)
	}
	return times, states, controls
}

func cut(cfg GeneratorConfig, times []float64, states [][]float64, controls []float64, rng *rand.Rand) Example {
	n := len(times)
	start := rng.Intn(n - 1)
	end := start + 1 + rng.Intn(n-1-start)

	ex := Example{
		X0: append([]float64(nil), states[start]...),
		T:  make([]float64, 0, end-start),
		Y:  make([][]float64, 0, end-start),
	}
	for k := start + 1; k <= end; k++ {
		ex.T = append(ex.T, times[k]-times[start])
		ex.Y = append(ex.Y, append([]float64(nil), states[k]...))
	}

	first := controlIndex(times[start], cfg.ControlDelta, len(controls))
	last := int(math.Ceil(times[end]/cfg.ControlDelta - 1e-9))
	if last > len(controls) {
		last = len(controls)
	}
	if last <= first {
		last = first + 1
	}
	for _, u := range controls[first:last] {
		ex.U = append(ex.U, []float64{u})
	}
	return ex
}

func controlIndex(t, delta float64, n int) int {
	i := int(t / delta)
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
