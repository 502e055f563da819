package commands

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flow-trainer/core/experiment"
	"flow-trainer/evaluation"
	"flow-trainer/logging"
	"flow-trainer/training/flow"
)

// EvaluateOptions controls the evaluate command
type EvaluateOptions struct {
	Sweep  evaluation.Config
	OutDir string
	Force  bool
	Seed   int64
}

var evaluateOptions = EvaluateOptions{Sweep: evaluation.DefaultConfig(), OutDir: "."}

// EvaluateCmd computes the prediction loss of a saved model over growing time horizons.
var EvaluateCmd = &cobra.Command{
	Use:   "evaluate <artifact>",
	Short: "Measure prediction loss over longer time horizons",
	Long: `Load a saved model and measure its prediction loss on fresh trajectories
whose horizon grows from the training horizon to --t_max.

For each of --n_t_steps horizons, --n_mc trajectories are simulated with the
run's control delta, and one loss per trajectory is written to
mse_time_horizon_<run id>.csv in --out_dir. An existing file is reused
unless --force is given.`,
	Example: `  flowtrain evaluate outputs/exp1/exp1_2024-03-01_12-00-00_6f1c2b9e0d4a4b1e9c553a8e5f0a7b21.pth --t_max 50 --n_mc 20`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(false); err != nil {
			return err
		}
		return Evaluate(cmd.Context(), cmd.OutOrStdout(), args[0], evaluateOptions)
	},
}

func init() {
	flags := EvaluateCmd.Flags()
	flags.Float64Var(&evaluateOptions.Sweep.TMax, "t_max", evaluateOptions.Sweep.TMax, "Largest time horizon")
	flags.IntVar(&evaluateOptions.Sweep.NSteps, "n_t_steps", evaluateOptions.Sweep.NSteps, "Number of time horizons")
	flags.IntVar(&evaluateOptions.Sweep.NMC, "n_mc", evaluateOptions.Sweep.NMC, "Monte Carlo trajectories per horizon")
	flags.StringVar(&evaluateOptions.OutDir, "out_dir", evaluateOptions.OutDir, "Directory of the result file")
	flags.BoolVar(&evaluateOptions.Force, "force", false, "Recompute even if the result file exists")
	flags.Int64Var(&evaluateOptions.Seed, "seed", 0, "Seed for trajectory simulation (0 uses the clock)")
}

// Evaluate runs or reloads the time-horizon sweep of the artifact at path
// and prints the mean loss per horizon to w
func Evaluate(ctx context.Context, w io.Writer, path string, opts EvaluateOptions) error {
	meta, state, err := experiment.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprint(w, meta.Describe())

	csvPath := evaluation.CSVPath(opts.OutDir, meta.IDHex())

	var points []evaluation.Point
	if _, statErr := os.Stat(csvPath); statErr == nil && !opts.Force {
		points, err = evaluation.ReadCSV(csvPath)
		if err != nil {
			return err
		}
		logging.Info("Loaded cached evaluation", logging.CLI, "path", csvPath, "points", len(points))
	} else {
		model, err := flow.FromState(state, meta.Options().LearningRate)
		if err != nil {
			return fmt.Errorf("failed to rebuild model: %w", err)
		}

		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		points, err = evaluation.TimeHorizonMSE(ctx, model, meta.Options(), opts.Sweep, rand.New(rand.NewSource(seed)))
		if err != nil {
			return err
		}
		if err := evaluation.WriteCSV(csvPath, points); err != nil {
			return err
		}
		logging.Info("Evaluation written", logging.CLI, "path", csvPath, "points", len(points), "seed", seed)
	}

	fmt.Fprintf(w, "%16s :: %16s\n", "Time horizon", "Mean loss")
	for _, p := range evaluation.MeanByHorizon(points) {
		fmt.Fprintf(w, "%16g :: %16e\n", p.TimeHorizon, p.Loss)
	}
	fmt.Fprintf(w, "Results: %s\n", csvPath)
	return nil
}
