package spec

import (
	"testing"

	"flow-trainer/core/models"
	"flow-trainer/core/options"

	"github.com/stretchr/testify/require"
)

const experimentYAML = `
experiment:
  data:
    n_trajectories: 400
    train_val_split: 80
    load: data/tank.pth
  model:
    control_rnn_size: 12
  training:
    lr: 0.005
    early_stopping:
      patience: 10
      delta: 0.0001
  output:
    save_model: tank
`

func TestParseExperimentSpec(t *testing.T) {
	opts, err := ParseExperimentSpec([]byte(experimentYAML), models.DefaultTrainingOptions())
	require.NoError(t, err)

	require.Equal(t, 400, opts.NTrajectories)
	require.Equal(t, 80, opts.TrainValSplit)
	require.Equal(t, "data/tank.pth", opts.LoadData)
	require.Equal(t, 12, opts.ControlRNNSize)
	require.Equal(t, 0.005, opts.LearningRate)
	require.Equal(t, 10, opts.ESPatience)
	require.Equal(t, 0.0001, opts.ESDelta)
	require.Equal(t, "tank", opts.SaveModel)

	// untouched fields keep their defaults
	require.Equal(t, 256, opts.BatchSize)
	require.Equal(t, 10000, opts.MaxEpochs)
	require.Equal(t, 1, opts.ControlRNNDepth)
}

func TestParseExperimentSpecRejectsInvalidValues(t *testing.T) {
	base := models.DefaultTrainingOptions()
	_, err := ParseExperimentSpec([]byte("experiment:\n  training:\n    batch_size: 0\n"), base)
	require.ErrorIs(t, err, options.ErrInvalid)

	_, err = ParseExperimentSpec([]byte("experiment:\n  data:\n    train_val_split: 140\n"), base)
	require.ErrorIs(t, err, options.ErrInvalid)
}

func TestParseExperimentSpecRejectsMalformedYAML(t *testing.T) {
	_, err := ParseExperimentSpec([]byte("experiment: [unclosed"), models.DefaultTrainingOptions())
	require.Error(t, err)
}

func TestParseExperimentSpecEmptyKeepsBase(t *testing.T) {
	base := models.DefaultTrainingOptions()
	opts, err := ParseExperimentSpec([]byte(""), base)
	require.NoError(t, err)
	require.Equal(t, base, opts)
}
