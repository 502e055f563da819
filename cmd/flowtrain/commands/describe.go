package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"flow-trainer/core/experiment"
	"flow-trainer/training/flow"
)

var describeHistory bool

// DescribeCmd prints the provenance of a saved model artifact.
var DescribeCmd = &cobra.Command{
	Use:   "describe <artifact>",
	Short: "Describe a saved model artifact",
	Long: `Load a saved model artifact and print its provenance: file name, save time,
revision, command line and data path. With --history the epoch table of the
run summary written next to the artifact is printed as well.`,
	Example: `  flowtrain describe outputs/exp1/exp1_2024-03-01_12-00-00_6f1c2b9e0d4a4b1e9c553a8e5f0a7b21.pth`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Describe(cmd.OutOrStdout(), args[0], describeHistory)
	},
}

func init() {
	DescribeCmd.Flags().BoolVar(&describeHistory, "history", false, "Print the epoch history from the run summary")
}

// Describe writes the description of the artifact at path to w
func Describe(w io.Writer, path string, history bool) error {
	meta, state, err := experiment.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprint(w, meta.Describe())
	fmt.Fprintf(w, "Run ID: %s\n", meta.IDHex())
	fmt.Fprintf(w, "Parameters: %d tensors\n", len(state))
	if model, err := flow.FromState(state, meta.Options().LearningRate); err == nil {
		stateDim, controlDim := model.Dims()
		fmt.Fprintf(w, "Model: linear flow, state dimension %d, control dimension %d\n", stateDim, controlDim)
	} else {
		fmt.Fprintf(w, "Model: %s\n", experiment.Unavailable)
	}

	opts := meta.Options()
	snapshot := opts.Snapshot()
	fmt.Fprintln(w, "Options:")
	for _, key := range opts.SnapshotKeys() {
		fmt.Fprintf(w, "    %s: %s\n", key, snapshot[key])
	}

	if !history {
		return nil
	}

	summaryPath := strings.TrimSuffix(path, experiment.ArtifactExt) + experiment.SummaryExt
	summary, err := experiment.ReadSummary(summaryPath)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "History: unavailable")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Status: %s after %d epochs (%.1fs)\n", summary.Status, summary.Epochs, summary.TrainSeconds)
	header := fmt.Sprintf("%5s :: %16s :: %16s :: %16s :: %16s",
		"Epoch", "Loss (Train)", "Loss (Val)", "Loss (Test)", "Best (Val)")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("=", len(header)))
	for _, rec := range summary.History {
		fmt.Fprintf(w, "%5d :: %16e :: %16e :: %16e :: %16e\n",
			rec.Epoch, rec.TrainLoss, rec.ValLoss, rec.TestLoss, rec.BestValLoss)
	}
	return nil
}
