package training

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func row(v float64) []float64 { return []float64{v} }

func TestSortByLength(t *testing.T) {
	b := &Batch{
		X0:      [][]float64{row(5), row(2), row(8), row(1)},
		T:       [][]float64{row(50), row(20), row(80), row(10)},
		Y:       [][][]float64{{row(5)}, {row(2)}, {row(8)}, {row(1)}},
		U:       [][][]float64{make([][]float64, 8), make([][]float64, 8), make([][]float64, 8), make([][]float64, 8)},
		Lengths: []int{5, 2, 8, 1},
	}
	require.NoError(t, b.Validate())

	sorted := b.SortByLength()
	require.Equal(t, []int{8, 5, 2, 1}, sorted.Lengths)
	require.Equal(t, [][]float64{row(8), row(5), row(2), row(1)}, sorted.X0)
	require.Equal(t, [][]float64{row(80), row(50), row(20), row(10)}, sorted.T)
	require.Equal(t, [][][]float64{{row(8)}, {row(5)}, {row(2)}, {row(1)}}, sorted.Y)

	// the input batch is untouched
	require.Equal(t, []int{5, 2, 8, 1}, b.Lengths)
}

func TestSortByLengthIsStable(t *testing.T) {
	b := &Batch{
		X0:      [][]float64{row(0), row(1), row(2), row(3)},
		T:       make([][]float64, 4),
		Y:       make([][][]float64, 4),
		U:       [][][]float64{make([][]float64, 3), make([][]float64, 3), make([][]float64, 3), make([][]float64, 3)},
		Lengths: []int{2, 3, 2, 3},
	}
	sorted := b.SortByLength()
	require.Equal(t, []int{3, 3, 2, 2}, sorted.Lengths)
	require.Equal(t, [][]float64{row(1), row(3), row(0), row(2)}, sorted.X0)
}

func TestSortByLengthEmpty(t *testing.T) {
	sorted := (&Batch{}).SortByLength()
	require.Zero(t, sorted.Len())
}

func TestValidate(t *testing.T) {
	b := &Batch{
		X0:      [][]float64{row(1)},
		T:       [][]float64{row(1)},
		Y:       [][][]float64{{row(1)}},
		U:       [][][]float64{{row(1)}},
		Lengths: []int{2},
	}
	require.Error(t, b.Validate())

	b.Lengths = []int{1}
	require.NoError(t, b.Validate())

	b.T = nil
	require.Error(t, b.Validate())
}
