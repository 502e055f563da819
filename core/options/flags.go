package options

import (
	"strconv"

	"flow-trainer/core/models"

	"github.com/spf13/pflag"
)

// The flag values below implement pflag.Value, so malformed input is
// rejected while the command line is being parsed.

type positiveInt struct{ p *int }

func (v positiveInt) Set(s string) error {
	n, err := ParsePositiveInt(s)
	if err != nil {
		return err
	}
	*v.p = n
	return nil
}
func (v positiveInt) String() string {
	if v.p == nil {
		return ""
	}
	return strconv.Itoa(*v.p)
}
func (v positiveInt) Type() string { return "positive-int" }

type positiveFloat struct{ p *float64 }

func (v positiveFloat) Set(s string) error {
	f, err := ParsePositiveFloat(s)
	if err != nil {
		return err
	}
	*v.p = f
	return nil
}
func (v positiveFloat) String() string {
	if v.p == nil {
		return ""
	}
	return strconv.FormatFloat(*v.p, 'g', -1, 64)
}
func (v positiveFloat) Type() string { return "positive-float" }

type nonNegativeFloat struct{ p *float64 }

func (v nonNegativeFloat) Set(s string) error {
	f, err := ParseNonNegativeFloat(s)
	if err != nil {
		return err
	}
	*v.p = f
	return nil
}
func (v nonNegativeFloat) String() string {
	if v.p == nil {
		return ""
	}
	return strconv.FormatFloat(*v.p, 'g', -1, 64)
}
func (v nonNegativeFloat) Type() string { return "nonnegative-float" }

type percentage struct{ p *int }

func (v percentage) Set(s string) error {
	n, err := ParsePercentage(s)
	if err != nil {
		return err
	}
	*v.p = n
	return nil
}
func (v percentage) String() string {
	if v.p == nil {
		return ""
	}
	return strconv.Itoa(*v.p)
}
func (v percentage) Type() string { return "percentage" }

// Register binds every training option to a flag, writing parsed values into o.
// o should already hold the defaults (or values read from a spec file).
func Register(fs *pflag.FlagSet, o *models.TrainingOptions) {
	fs.Var(positiveFloat{&o.ControlDelta}, "control_delta", "Control sampling rate")
	fs.Var(positiveFloat{&o.TimeHorizon}, "time_horizon", "Time horizon")
	fs.Var(positiveInt{&o.NTrajectories}, "n_trajectories", "Number of trajectories to sample")
	fs.Var(positiveInt{&o.NSamples}, "n_samples", "Number of state samples per trajectory")
	fs.Var(positiveInt{&o.ExamplesPerTraj}, "examples_per_traj", "Number of training examples per trajectory")
	fs.Var(percentage{&o.TrainValSplit}, "train_val_split", "Percentage of the generated data that is used for training")
	fs.Var(positiveInt{&o.BatchSize}, "batch_size", "Batch size for training and validation")
	fs.Var(positiveInt{&o.ControlRNNSize}, "control_rnn_size", "Size of the RNN hidden state")
	fs.Var(positiveInt{&o.ControlRNNDepth}, "control_rnn_depth", "Depth of the RNN")
	fs.Var(positiveFloat{&o.LearningRate}, "lr", "Initial learning rate")
	fs.Var(positiveInt{&o.MaxEpochs}, "n_epochs", "Max number of epochs")
	fs.Var(positiveInt{&o.ESPatience}, "es_patience", "Early stopping -- patience (epochs)")
	fs.Var(nonNegativeFloat{&o.ESDelta}, "es_delta", "Early stopping -- minimum loss change")
	fs.StringVar(&o.SaveModel, "save_model", o.SaveModel, "Subdirectory where the model will be saved")
	fs.StringVar(&o.SaveData, "save_data", o.SaveData, "Path to write the trajectory dataset")
	fs.StringVar(&o.LoadData, "load_data", o.LoadData, "Path to load the trajectory dataset")
}
