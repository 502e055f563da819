package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"flow-trainer/core/earlystop"
	"flow-trainer/core/models"
	"flow-trainer/logging"
)

// ErrEmptyDataset is returned when a split the loop needs has no batches
var ErrEmptyDataset = errors.New("empty dataset")

// State is the state of a training loop
type State int

const (
	StateRunning State = iota
	StateStoppedEarly
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStoppedEarly:
		return "stopped_early"
	case StateCompleted:
		return "completed"
	default:
		return "running"
	}
}

// RunStatus maps the loop state to the registry status
func (s State) RunStatus() models.RunStatus {
	switch s {
	case StateStoppedEarly:
		return models.RunStatusStoppedEarly
	case StateCompleted:
		return models.RunStatusCompleted
	default:
		return models.RunStatusRunning
	}
}

// Data holds the three dataset splits as batches
type Data struct {
	Train []*Batch
	Val   []*Batch
	Test  []*Batch
}

// Result describes a finished loop
type Result struct {
	State       State
	Epochs      int
	BestValLoss float64
	Duration    time.Duration
}

// Loop coordinates training, validation and testing over epochs
type Loop struct {
	model     Model
	scheduler Scheduler
	stopper   *earlystop.EarlyStopping
	recorder  Recorder
	data      Data
	maxEpochs int
	out       io.Writer

	state State
}

// NewLoop creates a training loop. scheduler may be nil; out receives the
// console table and may be nil.
func NewLoop(
	model Model,
	scheduler Scheduler,
	stopper *earlystop.EarlyStopping,
	recorder Recorder,
	data Data,
	maxEpochs int,
	out io.Writer,
) *Loop {
	if out == nil {
		out = io.Discard
	}
	return &Loop{
		model:     model,
		scheduler: scheduler,
		stopper:   stopper,
		recorder:  recorder,
		data:      data,
		maxEpochs: maxEpochs,
		out:       out,
		state:     StateRunning,
	}
}

// State returns the current loop state
func (l *Loop) State() State {
	return l.state
}

// Run executes epochs until early stopping fires or maxEpochs is reached.
// The elapsed time is handed to the recorder as final run metadata.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	if l.maxEpochs > 0 {
		if err := l.checkData(); err != nil {
			return nil, err
		}
	}

	header := fmt.Sprintf("%5s :: %16s :: %16s :: %16s :: %16s",
		"Epoch", "Loss (Train)", "Loss (Val)", "Loss (Test)", "Best (Val)")
	fmt.Fprintln(l.out, header)
	fmt.Fprintln(l.out, strings.Repeat("=", len(header)))

	logging.Info("Training started", logging.Training,
		"max_epochs", l.maxEpochs, "es_patience", l.stopper.Patience(), "es_delta", l.stopper.Delta())

	start := time.Now()
	epochs := 0

	for epoch := 1; epoch <= l.maxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := l.runEpoch(ctx, epoch); err != nil {
			return nil, err
		}
		epochs = epoch

		if l.stopper.Stopped() {
			l.state = StateStoppedEarly
			break
		}
	}
	if l.state == StateRunning {
		l.state = StateCompleted
	}

	trainTime := time.Since(start)
	if err := l.recorder.Save(ctx, trainTime, l.state.RunStatus()); err != nil {
		return nil, fmt.Errorf("failed to save experiment: %w", err)
	}

	logging.Info("Training finished", logging.Training,
		"state", l.state, "epochs", epochs, "best_val_loss", l.stopper.BestLoss(), "duration", trainTime)

	return &Result{
		State:       l.state,
		Epochs:      epochs,
		BestValLoss: l.stopper.BestLoss(),
		Duration:    trainTime,
	}, nil
}

func (l *Loop) runEpoch(ctx context.Context, epoch int) error {
	for i, batch := range l.data.Train {
		if _, err := l.model.Step(ctx, ModeTrain, batch.SortByLength()); err != nil {
			return fmt.Errorf("epoch %d: training batch %d: %w", epoch, i, err)
		}
	}

	trainLoss, err := l.evaluate(ctx, l.data.Train)
	if err != nil {
		return fmt.Errorf("epoch %d: evaluating train set: %w", epoch, err)
	}
	valLoss, err := l.evaluate(ctx, l.data.Val)
	if err != nil {
		return fmt.Errorf("epoch %d: evaluating validation set: %w", epoch, err)
	}
	testLoss, err := l.evaluate(ctx, l.data.Test)
	if err != nil {
		return fmt.Errorf("epoch %d: evaluating test set: %w", epoch, err)
	}

	if l.scheduler != nil {
		l.scheduler.Step(valLoss)
	}
	l.stopper.Step(valLoss)

	fmt.Fprintf(l.out, "%5d :: %16e :: %16e :: %16e :: %16e\n",
		epoch, trainLoss, valLoss, testLoss, l.stopper.BestLoss())

	isBest := l.stopper.IsBestSoFar()
	if isBest {
		if err := l.recorder.SaveModel(ctx, epoch, valLoss, l.model.State()); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
	}

	l.recorder.RegisterProgress(ctx, trainLoss, valLoss, testLoss, isBest)

	logging.Debug("Epoch finished", logging.Training,
		"epoch", epoch, "train_loss", trainLoss, "val_loss", valLoss, "test_loss", testLoss,
		"best", isBest, "strikes", l.stopper.StrikeCount())
	return nil
}

// evaluate returns the mean batch loss over a split
func (l *Loop) evaluate(ctx context.Context, batches []*Batch) (float64, error) {
	total := 0.0
	for i, batch := range batches {
		loss, err := l.model.Step(ctx, ModeEval, batch.SortByLength())
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		total += loss
	}
	return total / float64(len(batches)), nil
}

func (l *Loop) checkData() error {
	splits := []struct {
		name    string
		batches []*Batch
	}{
		{"train", l.data.Train},
		{"validation", l.data.Val},
		{"test", l.data.Test},
	}
	for _, s := range splits {
		if len(s.batches) == 0 {
			return fmt.Errorf("%s split: %w", s.name, ErrEmptyDataset)
		}
	}
	return nil
}
