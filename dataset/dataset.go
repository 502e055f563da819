package dataset

import (
	"errors"
	"fmt"

	"flow-trainer/storage"
	"flow-trainer/training"
)

// ErrInvalidDataset is wrapped by every consistency failure
var ErrInvalidDataset = errors.New("invalid dataset")

// Example is one trajectory sample: the system starts at X0, is driven by
// the control sequence U and is observed at times T with states Y.
type Example struct {
	X0 []float64   `json:"x0"`
	T  []float64   `json:"t"`
	Y  [][]float64 `json:"y"`
	U  [][]float64 `json:"u"`
}

// Dataset is a collection of examples plus the generation settings they came from
type Dataset struct {
	ControlDelta float64   `json:"control_delta,omitempty"`
	TimeHorizon  float64   `json:"time_horizon,omitempty"`
	Examples     []Example `json:"examples"`
}

// Load reads a dataset written by Save
func Load(path string) (*Dataset, error) {
	var d Dataset
	if err := storage.ReadCompressedJSON(path, &d); err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the dataset as zlib-compressed JSON
func (d *Dataset) Save(path string) error {
	if err := storage.WriteCompressedJSON(path, d); err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", path, err)
	}
	return nil
}

// StateDim returns the dimension of the system state
func (d *Dataset) StateDim() int {
	if len(d.Examples) == 0 {
		return 0
	}
	return len(d.Examples[0].X0)
}

// ControlDim returns the dimension of the control input
func (d *Dataset) ControlDim() int {
	for _, ex := range d.Examples {
		if len(ex.U) > 0 {
			return len(ex.U[0])
		}
	}
	return 0
}

// Validate checks that every example has consistent shapes
func (d *Dataset) Validate() error {
	if len(d.Examples) == 0 {
		return fmt.Errorf("%w: no examples", ErrInvalidDataset)
	}
	stateDim, controlDim := d.StateDim(), d.ControlDim()
	if stateDim == 0 {
		return fmt.Errorf("%w: empty initial state", ErrInvalidDataset)
	}

	for i, ex := range d.Examples {
		if len(ex.X0) != stateDim {
			return fmt.Errorf("%w: example %d: state dimension %d, expected %d", ErrInvalidDataset, i, len(ex.X0), stateDim)
		}
		if len(ex.T) != len(ex.Y) {
			return fmt.Errorf("%w: example %d: %d times but %d observations", ErrInvalidDataset, i, len(ex.T), len(ex.Y))
		}
		for k, y := range ex.Y {
			if len(y) != stateDim {
				return fmt.Errorf("%w: example %d: observation %d has dimension %d", ErrInvalidDataset, i, k, len(y))
			}
		}
		for k, u := range ex.U {
			if len(u) != controlDim {
				return fmt.Errorf("%w: example %d: control %d has dimension %d", ErrInvalidDataset, i, k, len(u))
			}
		}
	}
	return nil
}

// Split partitions the examples in order: trainPercent percent go to the
// training split, the remainder is halved into validation and test.
func (d *Dataset) Split(trainPercent int) (train, val, test []Example) {
	n := len(d.Examples)
	nTrain := n * trainPercent / 100
	nVal := (n - nTrain) / 2

	train = d.Examples[:nTrain]
	val = d.Examples[nTrain : nTrain+nVal]
	test = d.Examples[nTrain+nVal:]
	return train, val, test
}

// Batches groups examples into padded batches of at most batchSize.
// Control sequences are zero-padded to the longest one in their batch.
func Batches(examples []Example, batchSize int) []*training.Batch {
	if batchSize <= 0 {
		batchSize = len(examples)
	}

	var batches []*training.Batch
	for start := 0; start < len(examples); start += batchSize {
		end := start + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		batches = append(batches, newBatch(examples[start:end]))
	}
	return batches
}

func newBatch(examples []Example) *training.Batch {
	maxLen, width := 0, 0
	for _, ex := range examples {
		if len(ex.U) > maxLen {
			maxLen = len(ex.U)
		}
		if len(ex.U) > 0 {
			width = len(ex.U[0])
		}
	}

	b := &training.Batch{
		X0:      make([][]float64, len(examples)),
		T:       make([][]float64, len(examples)),
		Y:       make([][][]float64, len(examples)),
		U:       make([][][]float64, len(examples)),
		Lengths: make([]int, len(examples)),
	}
	for i, ex := range examples {
		b.X0[i] = ex.X0
		b.T[i] = ex.T
		b.Y[i] = ex.Y

		padded := make([][]float64, maxLen)
		copy(padded, ex.U)
		for k := len(ex.U); k < maxLen; k++ {
			padded[k] = make([]float64, width)
		}
		b.U[i] = padded
		b.Lengths[i] = len(ex.U)
	}
	return b
}
