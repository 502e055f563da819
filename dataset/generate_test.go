package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func generatorConfig() GeneratorConfig {
	return GeneratorConfig{
		NTrajectories:   4,
		NSamples:        20,
		ExamplesPerTraj: 5,
		ControlDelta:    0.5,
		TimeHorizon:     10,
	}
}

func TestGenerateShapes(t *testing.T) {
	d, err := Generate(generatorConfig(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	require.Len(t, d.Examples, 20)
	require.Equal(t, 2, d.StateDim())
	require.Equal(t, 1, d.ControlDim())

	lengths := map[int]bool{}
	for _, ex := range d.Examples {
		require.NotEmpty(t, ex.T)
		require.NotEmpty(t, ex.U)
		require.Greater(t, ex.T[0], 0.0)
		for k := 1; k < len(ex.T); k++ {
			require.Greater(t, ex.T[k], ex.T[k-1])
		}
		lengths[len(ex.U)] = true
	}
	require.Greater(t, len(lengths), 1, "control sequences should vary in length")
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a, err := Generate(generatorConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := Generate(generatorConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	cfg := generatorConfig()
	cfg.NSamples = 1
	_, err := Generate(cfg, rng)
	require.ErrorIs(t, err, ErrInvalidDataset)

	cfg = generatorConfig()
	cfg.ControlDelta = 0
	_, err = Generate(cfg, rng)
	require.ErrorIs(t, err, ErrInvalidDataset)
}

func TestTrajectoryCoversHorizon(t *testing.T) {
	ex, err := Trajectory(0.5, 10, 40, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, ex.T, 40)
	require.Len(t, ex.Y, 40)
	require.Len(t, ex.U, 20)
	require.InDelta(t, 10.0, ex.T[len(ex.T)-1], 1e-9)
	require.InDelta(t, 0.25, ex.T[0], 1e-9)

	_, err = Trajectory(0.5, 10, 0, rand.New(rand.NewSource(3)))
	require.ErrorIs(t, err, ErrInvalidDataset)
}
