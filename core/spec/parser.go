package spec

import (
	"fmt"

	"flow-trainer/core/models"
	"flow-trainer/core/options"

	"gopkg.in/yaml.v3"
)

// ExperimentSpec represents the YAML experiment specification
type ExperimentSpec struct {
	Experiment ExperimentSpecBody `yaml:"experiment"`
}

// ExperimentSpecBody represents the experiment section of the spec
type ExperimentSpecBody struct {
	Data     ExperimentSpecData     `yaml:"data"`
	Model    ExperimentSpecModel    `yaml:"model"`
	Training ExperimentSpecTraining `yaml:"training"`
	Output   ExperimentSpecOutput   `yaml:"output"`
}

// ExperimentSpecData represents dataset generation and location settings
type ExperimentSpecData struct {
	ControlDelta    *float64 `yaml:"control_delta,omitempty"`
	TimeHorizon     *float64 `yaml:"time_horizon,omitempty"`
	NTrajectories   *int     `yaml:"n_trajectories,omitempty"`
	NSamples        *int     `yaml:"n_samples,omitempty"`
	ExamplesPerTraj *int     `yaml:"examples_per_traj,omitempty"`
	TrainValSplit   *int     `yaml:"train_val_split,omitempty"` // percent
	Load            string   `yaml:"load,omitempty"`
	Save            string   `yaml:"save,omitempty"`
}

// ExperimentSpecModel represents the model shape
type ExperimentSpecModel struct {
	ControlRNNSize  *int `yaml:"control_rnn_size,omitempty"`
	ControlRNNDepth *int `yaml:"control_rnn_depth,omitempty"`
}

// ExperimentSpecTraining represents optimizer and loop settings
type ExperimentSpecTraining struct {
	BatchSize     *int                        `yaml:"batch_size,omitempty"`
	LearningRate  *float64                    `yaml:"lr,omitempty"`
	MaxEpochs     *int                        `yaml:"n_epochs,omitempty"`
	EarlyStopping ExperimentSpecEarlyStopping `yaml:"early_stopping"`
}

// ExperimentSpecEarlyStopping represents the early-stopping policy
type ExperimentSpecEarlyStopping struct {
	Patience *int     `yaml:"patience,omitempty"`
	Delta    *float64 `yaml:"delta,omitempty"`
}

// ExperimentSpecOutput represents where artifacts go
type ExperimentSpecOutput struct {
	SaveModel string `yaml:"save_model,omitempty"`
}

// ParseExperimentSpec parses a YAML experiment specification on top of base.
// Fields absent from the document keep their base value. The result is validated.
func ParseExperimentSpec(specYAML []byte, base models.TrainingOptions) (models.TrainingOptions, error) {
	var spec ExperimentSpec
	if err := yaml.Unmarshal(specYAML, &spec); err != nil {
		return base, fmt.Errorf("failed to parse YAML: %w", err)
	}

	opts := base
	exp := spec.Experiment

	// Data
	setFloat(&opts.ControlDelta, exp.Data.ControlDelta)
	setFloat(&opts.TimeHorizon, exp.Data.TimeHorizon)
	setInt(&opts.NTrajectories, exp.Data.NTrajectories)
	setInt(&opts.NSamples, exp.Data.NSamples)
	setInt(&opts.ExamplesPerTraj, exp.Data.ExamplesPerTraj)
	setInt(&opts.TrainValSplit, exp.Data.TrainValSplit)
	setString(&opts.LoadData, exp.Data.Load)
	setString(&opts.SaveData, exp.Data.Save)

	// Model
	setInt(&opts.ControlRNNSize, exp.Model.ControlRNNSize)
	setInt(&opts.ControlRNNDepth, exp.Model.ControlRNNDepth)

	// Training
	setInt(&opts.BatchSize, exp.Training.BatchSize)
	setFloat(&opts.LearningRate, exp.Training.LearningRate)
	setInt(&opts.MaxEpochs, exp.Training.MaxEpochs)
	setInt(&opts.ESPatience, exp.Training.EarlyStopping.Patience)
	setFloat(&opts.ESDelta, exp.Training.EarlyStopping.Delta)

	// Output
	setString(&opts.SaveModel, exp.Output.SaveModel)

	if err := options.Validate(opts); err != nil {
		return base, fmt.Errorf("invalid experiment spec: %w", err)
	}

	return opts, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
