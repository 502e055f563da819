package training

import (
	"context"
	"time"

	"flow-trainer/core/models"
)

// Mode selects how a model handles a batch
type Mode int

const (
	// ModeTrain runs forward and backward passes and applies one optimizer step
	ModeTrain Mode = iota
	// ModeEval runs the forward pass only, without gradient tracking
	ModeEval
)

func (m Mode) String() string {
	if m == ModeTrain {
		return "train"
	}
	return "eval"
}

// Model is the numeric model being trained. Batches handed to Step are
// already ordered by descending sequence length.
type Model interface {
	// Step returns the batch loss
	Step(ctx context.Context, mode Mode, batch *Batch) (float64, error)
	// State returns a snapshot of the trainable parameters
	State() models.ModelState
}

// Scheduler adjusts the learning rate from the validation loss
type Scheduler interface {
	Step(valLoss float64)
}

// Recorder persists checkpoints and progress of a run
type Recorder interface {
	SaveModel(ctx context.Context, epoch int, valLoss float64, state models.ModelState) error
	RegisterProgress(ctx context.Context, trainLoss, valLoss, testLoss float64, isBest bool)
	Save(ctx context.Context, trainTime time.Duration, status models.RunStatus) error
}
