package earlystop

import "math"

// EarlyStopping tracks the best validation loss of a run and decides when
// training should stop. Create one per run and call Step once per epoch.
type EarlyStopping struct {
	patience int
	delta    float64

	bestLoss    float64
	strikeCount int
	stopped     bool
	isBestSoFar bool
}

// New creates an early-stopping policy.
// patience is the number of consecutive epochs without an improvement larger
// than delta after which the run stops.
func New(patience int, delta float64) *EarlyStopping {
	return &EarlyStopping{
		patience: patience,
		delta:    delta,
		bestLoss: math.Inf(1),
	}
}

// Step feeds one validation loss into the policy
func (es *EarlyStopping) Step(valLoss float64) {
	es.isBestSoFar = false

	if es.bestLoss-valLoss > es.delta {
		es.bestLoss = valLoss
		es.isBestSoFar = true
		es.strikeCount = 0
	} else {
		es.strikeCount++
	}

	if es.strikeCount >= es.patience {
		es.stopped = true
	}
}

// Stopped reports whether training should stop. Once true it stays true.
func (es *EarlyStopping) Stopped() bool {
	return es.stopped
}

// IsBestSoFar reports whether the last Step improved the best loss
func (es *EarlyStopping) IsBestSoFar() bool {
	return es.isBestSoFar
}

// BestLoss returns the best validation loss seen, +Inf before the first Step
func (es *EarlyStopping) BestLoss() float64 {
	return es.bestLoss
}

// StrikeCount returns the number of consecutive epochs without improvement
func (es *EarlyStopping) StrikeCount() int {
	return es.strikeCount
}

// Patience returns the configured patience
func (es *EarlyStopping) Patience() int {
	return es.patience
}

// Delta returns the configured minimum improvement
func (es *EarlyStopping) Delta() float64 {
	return es.delta
}
