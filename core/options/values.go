package options

import (
	"errors"
	"fmt"
	"strconv"

	"flow-trainer/core/models"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid option value")

// ParsePositiveInt parses an integer greater than zero
func ParsePositiveInt(value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalid, value)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %d is not a positive integer", ErrInvalid, v)
	}
	return v, nil
}

// ParsePositiveFloat parses a float greater than zero
func ParsePositiveFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a float", ErrInvalid, value)
	}
	if !(v > 0) {
		return 0, fmt.Errorf("%w: %v is not a positive float", ErrInvalid, v)
	}
	return v, nil
}

// ParseNonNegativeFloat parses a float greater than or equal to zero
func ParseNonNegativeFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a float", ErrInvalid, value)
	}
	if !(v >= 0) {
		return 0, fmt.Errorf("%w: %v is not a nonnegative float", ErrInvalid, v)
	}
	return v, nil
}

// ParsePercentage parses an integer in [0, 100]
func ParsePercentage(value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalid, value)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %d is not a valid percentage", ErrInvalid, v)
	}
	return v, nil
}

// Validate checks a fully assembled options value, e.g. one read from a spec file
func Validate(o models.TrainingOptions) error {
	positiveFloats := []struct {
		name  string
		value float64
	}{
		{"control_delta", o.ControlDelta},
		{"time_horizon", o.TimeHorizon},
		{"lr", o.LearningRate},
	}
	for _, f := range positiveFloats {
		if !(f.value > 0) {
			return fmt.Errorf("%s: %w: %v is not a positive float", f.name, ErrInvalid, f.value)
		}
	}

	positiveInts := []struct {
		name  string
		value int
	}{
		{"n_trajectories", o.NTrajectories},
		{"n_samples", o.NSamples},
		{"examples_per_traj", o.ExamplesPerTraj},
		{"batch_size", o.BatchSize},
		{"control_rnn_size", o.ControlRNNSize},
		{"control_rnn_depth", o.ControlRNNDepth},
		{"n_epochs", o.MaxEpochs},
		{"es_patience", o.ESPatience},
	}
	for _, i := range positiveInts {
		if i.value <= 0 {
			return fmt.Errorf("%s: %w: %d is not a positive integer", i.name, ErrInvalid, i.value)
		}
	}

	if !(o.ESDelta >= 0) {
		return fmt.Errorf("es_delta: %w: %v is not a nonnegative float", ErrInvalid, o.ESDelta)
	}
	if o.TrainValSplit < 0 || o.TrainValSplit > 100 {
		return fmt.Errorf("train_val_split: %w: %d is not a valid percentage", ErrInvalid, o.TrainValSplit)
	}
	return nil
}
