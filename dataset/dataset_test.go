package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func example(x float64, steps int) Example {
	ex := Example{
		X0: []float64{x, -x},
		T:  []float64{0.5, 1},
		Y:  [][]float64{{x + 0.5, -x}, {x + 1, -x}},
	}
	for i := 0; i < steps; i++ {
		ex.U = append(ex.U, []float64{float64(i)})
	}
	return ex
}

func sample(n int) *Dataset {
	d := &Dataset{ControlDelta: 0.5, TimeHorizon: 10}
	for i := 0; i < n; i++ {
		d.Examples = append(d.Examples, example(float64(i), 1+i%4))
	}
	return d
}

func TestSaveLoadRoundTrip(t *testing.T) {
	d := sample(7)
	path := filepath.Join(t.TempDir(), "data.pth")
	require.NoError(t, d.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, d, loaded)
	require.Equal(t, 2, loaded.StateDim())
	require.Equal(t, 1, loaded.ControlDim())
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, (&Dataset{}).Validate(), ErrInvalidDataset)

	d := sample(3)
	d.Examples[1].Y = d.Examples[1].Y[:1]
	require.ErrorIs(t, d.Validate(), ErrInvalidDataset)

	d = sample(3)
	d.Examples[2].X0 = []float64{1}
	require.ErrorIs(t, d.Validate(), ErrInvalidDataset)

	d = sample(3)
	d.Examples[2].U[0] = []float64{1, 2}
	require.ErrorIs(t, d.Validate(), ErrInvalidDataset)
}

func TestSplit(t *testing.T) {
	train, val, test := sample(10).Split(70)
	require.Len(t, train, 7)
	require.Len(t, val, 1)
	require.Len(t, test, 2)

	train, val, test = sample(10).Split(100)
	require.Len(t, train, 10)
	require.Empty(t, val)
	require.Empty(t, test)
}

func TestBatchesPadControls(t *testing.T) {
	d := sample(5)
	batches := Batches(d.Examples, 2)
	require.Len(t, batches, 3)

	first := batches[0]
	require.NoError(t, first.Validate())
	require.Equal(t, []int{1, 2}, first.Lengths)
	require.Len(t, first.U[0], 2)
	require.Equal(t, []float64{0}, first.U[0][1])

	last := batches[2]
	require.Equal(t, 1, last.Len())
	require.Equal(t, []int{1}, last.Lengths)
}
