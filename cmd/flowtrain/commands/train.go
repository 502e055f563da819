package commands

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"flow-trainer/config"
	"flow-trainer/core/earlystop"
	"flow-trainer/core/experiment"
	"flow-trainer/core/models"
	"flow-trainer/core/options"
	"flow-trainer/core/repository"
	"flow-trainer/core/spec"
	"flow-trainer/dataset"
	"flow-trainer/logging"
	awsprovider "flow-trainer/providers/aws"
	"flow-trainer/storage"
	"flow-trainer/training"
	"flow-trainer/training/flow"
)

// Learning-rate schedule applied on validation plateaus
const (
	plateauFactor   = 0.1
	plateauPatience = 10
	plateauMinLR    = 0
)

// Train command flags
var (
	trainFlagOptions = models.DefaultTrainingOptions()
	trainSpecPath    string
	trainSeed        int64
)

// TrainCmd trains a model and records the run.
var TrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a flow model",
	Long: `Train a flow model on a generated or loaded trajectory dataset.

Options are read from --spec (a YAML experiment file) when given, and any
flag set on the command line overrides the file. The model is saved every
time the validation loss improves, and a run summary is written next to it
once training ends.`,
	Example: `  # Train with defaults and save under outputs/exp1
  flowtrain train --save_model exp1

  # Train from an experiment file with a shorter patience
  flowtrain train --spec experiment.yaml --es_patience 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		opts, err := resolveOptions(cmd.Flags(), trainSpecPath)
		if err != nil {
			return err
		}

		_, err = RunTrain(cmd.Context(), cfg, opts, strings.Join(os.Args, " "), trainSeed, cmd.OutOrStdout())
		return err
	},
}

func init() {
	flags := TrainCmd.Flags()
	options.Register(flags, &trainFlagOptions)
	flags.StringVar(&trainSpecPath, "spec", "", "YAML experiment file")
	flags.Int64Var(&trainSeed, "seed", 0, "Seed for dataset generation (0 uses the clock)")
}

// resolveOptions layers defaults, the optional spec file and the flags that
// were set explicitly
func resolveOptions(fs *pflag.FlagSet, specPath string) (models.TrainingOptions, error) {
	opts := models.DefaultTrainingOptions()
	if specPath != "" {
		data, err := os.ReadFile(specPath)
		if err != nil {
			return opts, fmt.Errorf("failed to read experiment spec: %w", err)
		}
		opts, err = spec.ParseExperimentSpec(data, opts)
		if err != nil {
			return opts, err
		}
	}

	overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	options.Register(overlay, &opts)

	var setErr error
	fs.Visit(func(f *pflag.Flag) {
		if setErr != nil || overlay.Lookup(f.Name) == nil {
			return
		}
		if err := overlay.Set(f.Name, f.Value.String()); err != nil {
			setErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return opts, setErr
	}

	return opts, options.Validate(opts)
}

// RunTrain executes one training run end to end
func RunTrain(ctx context.Context, cfg *config.Config, opts models.TrainingOptions, commandLine string, seed int64, out io.Writer) (*training.Result, error) {
	logging.Info("Device", logging.CLI, "cpus", runtime.NumCPU(), "gomaxprocs", runtime.GOMAXPROCS(0))

	meta, err := experiment.New(ctx, opts, commandLine, experiment.Environment{OutputRoot: cfg.OutputRoot})
	if err != nil {
		return nil, err
	}

	var registry experiment.Registry
	var artifacts experiment.ArtifactStore
	var checkpoints *storage.CheckpointManager

	if cfg.RegistryEnabled() {
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		registry = repository.NewRegistry(db)

		var uploader storage.Uploader
		if cfg.OffloadEnabled() {
			client, err := awsprovider.NewClient(ctx, cfg.AWSRegion, cfg.ArtifactBucket)
			if err != nil {
				return nil, err
			}
			logging.Info("Artifact offload enabled", logging.Storage, "bucket", client.Bucket(), "region", cfg.AWSRegion)
			uploader = client
		}
		checkpoints = storage.NewCheckpointManager(repository.NewArtifactRepository(db), uploader)
		artifacts = checkpoints
	} else if cfg.OffloadEnabled() {
		logging.Warn("Artifact offload needs the run registry; skipping", logging.CLI, "bucket", cfg.ArtifactBucket)
	}

	exp, err := experiment.NewExperiment(ctx, meta, registry, artifacts)
	if err != nil {
		return nil, err
	}

	result, err := train(ctx, exp, opts, seed, checkpoints, out)
	if err != nil {
		exp.Fail(ctx, err)
		return nil, err
	}
	return result, nil
}

func train(ctx context.Context, exp *experiment.Experiment, opts models.TrainingOptions, seed int64, checkpoints *storage.CheckpointManager, out io.Writer) (*training.Result, error) {
	d, err := loadDataset(opts, seed)
	if err != nil {
		return nil, err
	}

	if opts.SaveData != "" {
		if err := d.Save(opts.SaveData); err != nil {
			return nil, err
		}
		logging.Info("Dataset saved", logging.CLI, "path", opts.SaveData, "examples", len(d.Examples))
		if checkpoints != nil {
			runID := exp.Metadata().ID().String()
			if err := checkpoints.SaveDataset(ctx, runID, opts.SaveData, len(d.Examples)); err != nil {
				logging.Warn("Failed to record dataset", logging.CLI, "error", err)
			}
		}
	}

	trainSet, valSet, testSet := d.Split(opts.TrainValSplit)
	data := training.Data{
		Train: dataset.Batches(trainSet, opts.BatchSize),
		Val:   dataset.Batches(valSet, opts.BatchSize),
		Test:  dataset.Batches(testSet, opts.BatchSize),
	}
	logging.Info("Dataset split", logging.CLI,
		"train", len(trainSet), "val", len(valSet), "test", len(testSet), "batch_size", opts.BatchSize)

	model := flow.NewLinearFlow(d.StateDim(), d.ControlDim(), opts.LearningRate)
	scheduler := training.NewPlateauScheduler(model, plateauFactor, plateauPatience, plateauMinLR)
	stopper := earlystop.New(opts.ESPatience, opts.ESDelta)

	loop := training.NewLoop(model, scheduler, stopper, exp, data, opts.MaxEpochs, out)
	return loop.Run(ctx)
}

func loadDataset(opts models.TrainingOptions, seed int64) (*dataset.Dataset, error) {
	if opts.LoadData != "" {
		d, err := dataset.Load(opts.LoadData)
		if err != nil {
			return nil, err
		}
		logging.Info("Dataset loaded", logging.CLI, "path", opts.LoadData, "examples", len(d.Examples))
		return d, nil
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d, err := dataset.Generate(dataset.GeneratorConfig{
		NTrajectories:   opts.NTrajectories,
		NSamples:        opts.NSamples,
		ExamplesPerTraj: opts.ExamplesPerTraj,
		ControlDelta:    opts.ControlDelta,
		TimeHorizon:     opts.TimeHorizon,
	}, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	logging.Info("Dataset generated", logging.CLI, "seed", seed, "examples", len(d.Examples))
	return d, nil
}
