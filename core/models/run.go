package models

import "time"

// Run is the registry record of one training run
type Run struct {
	ID           string
	CommandLine  string
	Revision     string
	DataPath     string
	OutputDir    string
	FileName     string
	Options      TrainingOptions
	Status       RunStatus
	Epochs       int
	BestValLoss  *float64
	TrainSeconds *float64
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// RunStatus represents the state of a training run
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusStoppedEarly RunStatus = "stopped_early"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusFailed       RunStatus = "failed"
)

// Finished reports whether the status is terminal
func (s RunStatus) Finished() bool {
	return s == RunStatusStoppedEarly || s == RunStatusCompleted || s == RunStatusFailed
}

// EpochRecord is the progress reported after one epoch
type EpochRecord struct {
	Epoch       int       `json:"epoch" yaml:"epoch"`
	TrainLoss   float64   `json:"train_loss" yaml:"train_loss"`
	ValLoss     float64   `json:"val_loss" yaml:"val_loss"`
	TestLoss    float64   `json:"test_loss" yaml:"test_loss"`
	BestValLoss float64   `json:"best_val_loss" yaml:"best_val_loss"`
	IsBest      bool      `json:"is_best" yaml:"is_best"`
	At          time.Time `json:"at" yaml:"at"`
}

// ModelState holds a model's trainable parameters by name
type ModelState map[string][]float64

// Clone returns a deep copy of the state
func (s ModelState) Clone() ModelState {
	if s == nil {
		return nil
	}
	out := make(ModelState, len(s))
	for k, v := range s {
		out[k] = append([]float64(nil), v...)
	}
	return out
}
