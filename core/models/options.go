package models

import (
	"sort"
	"strconv"
)

// TrainingOptions is the configuration snapshot of a training run.
// It is copied by value into run metadata and never mutated afterwards.
type TrainingOptions struct {
	ControlDelta    float64 `json:"control_delta" yaml:"control_delta"`
	TimeHorizon     float64 `json:"time_horizon" yaml:"time_horizon"`
	NTrajectories   int     `json:"n_trajectories" yaml:"n_trajectories"`
	NSamples        int     `json:"n_samples" yaml:"n_samples"`
	ExamplesPerTraj int     `json:"examples_per_traj" yaml:"examples_per_traj"`
	TrainValSplit   int     `json:"train_val_split" yaml:"train_val_split"` // percent of data used for training
	BatchSize       int     `json:"batch_size" yaml:"batch_size"`
	ControlRNNSize  int     `json:"control_rnn_size" yaml:"control_rnn_size"`
	ControlRNNDepth int     `json:"control_rnn_depth" yaml:"control_rnn_depth"`
	LearningRate    float64 `json:"lr" yaml:"lr"`
	MaxEpochs       int     `json:"n_epochs" yaml:"n_epochs"`
	ESPatience      int     `json:"es_patience" yaml:"es_patience"`
	ESDelta         float64 `json:"es_delta" yaml:"es_delta"`
	SaveModel       string  `json:"save_model,omitempty" yaml:"save_model,omitempty"`
	SaveData        string  `json:"save_data,omitempty" yaml:"save_data,omitempty"`
	LoadData        string  `json:"load_data,omitempty" yaml:"load_data,omitempty"`
}

// DefaultTrainingOptions returns the defaults of the command-line surface
func DefaultTrainingOptions() TrainingOptions {
	return TrainingOptions{
		ControlDelta:    0.5,
		TimeHorizon:     10,
		NTrajectories:   100,
		NSamples:        50,
		ExamplesPerTraj: 25,
		TrainValSplit:   70,
		BatchSize:       256,
		ControlRNNSize:  6,
		ControlRNNDepth: 1,
		LearningRate:    1e-3,
		MaxEpochs:       10000,
		ESPatience:      30,
		ESDelta:         0,
	}
}

// Snapshot returns the options as an option -> value map.
// Unset optional paths are omitted.
func (o TrainingOptions) Snapshot() map[string]string {
	snapshot := map[string]string{
		"control_delta":     formatFloat(o.ControlDelta),
		"time_horizon":      formatFloat(o.TimeHorizon),
		"n_trajectories":    strconv.Itoa(o.NTrajectories),
		"n_samples":         strconv.Itoa(o.NSamples),
		"examples_per_traj": strconv.Itoa(o.ExamplesPerTraj),
		"train_val_split":   strconv.Itoa(o.TrainValSplit),
		"batch_size":        strconv.Itoa(o.BatchSize),
		"control_rnn_size":  strconv.Itoa(o.ControlRNNSize),
		"control_rnn_depth": strconv.Itoa(o.ControlRNNDepth),
		"lr":                formatFloat(o.LearningRate),
		"n_epochs":          strconv.Itoa(o.MaxEpochs),
		"es_patience":       strconv.Itoa(o.ESPatience),
		"es_delta":          formatFloat(o.ESDelta),
	}
	if o.SaveModel != "" {
		snapshot["save_model"] = o.SaveModel
	}
	if o.SaveData != "" {
		snapshot["save_data"] = o.SaveData
	}
	if o.LoadData != "" {
		snapshot["load_data"] = o.LoadData
	}
	return snapshot
}

// SnapshotKeys returns the snapshot keys in sorted order
func (o TrainingOptions) SnapshotKeys() []string {
	snapshot := o.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
