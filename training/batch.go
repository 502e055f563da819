package training

import (
	"fmt"
	"sort"
)

// Batch is a padded mini-batch of variable-length trajectories.
// Row i of every field belongs to the same example.
type Batch struct {
	X0      [][]float64   // initial state
	T       [][]float64   // sample times
	Y       [][][]float64 // target state at each sample time
	U       [][][]float64 // control sequence, padded to the longest in the batch
	Lengths []int         // valid control steps per example
}

// Len returns the number of examples in the batch
func (b *Batch) Len() int {
	return len(b.Lengths)
}

// Validate checks that all paired fields have one row per example
func (b *Batch) Validate() error {
	n := len(b.Lengths)
	fields := []struct {
		name string
		len  int
	}{
		{"x0", len(b.X0)},
		{"t", len(b.T)},
		{"y", len(b.Y)},
		{"u", len(b.U)},
	}
	for _, f := range fields {
		if f.len != n {
			return fmt.Errorf("batch field %s has %d rows, expected %d", f.name, f.len, n)
		}
	}
	for i, l := range b.Lengths {
		if l < 0 || l > len(b.U[i]) {
			return fmt.Errorf("batch row %d: length %d outside [0, %d]", i, l, len(b.U[i]))
		}
	}
	return nil
}

// SortByLength returns a copy of the batch with rows ordered by descending
// sequence length, as required for packing. Rows of equal length keep their
// relative order and every field is permuted identically.
func (b *Batch) SortByLength() *Batch {
	order := make([]int, len(b.Lengths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return b.Lengths[order[i]] > b.Lengths[order[j]]
	})

	return &Batch{
		X0:      permute(b.X0, order),
		T:       permute(b.T, order),
		Y:       permute(b.Y, order),
		U:       permute(b.U, order),
		Lengths: permute(b.Lengths, order),
	}
}

func permute[T any](rows []T, order []int) []T {
	if rows == nil {
		return nil
	}
	out := make([]T, len(order))
	for i, src := range order {
		out[i] = rows[src]
	}
	return out
}
