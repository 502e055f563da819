package training

import "math"

// LearningRateSetter is implemented by models whose optimizer learning rate can be changed
type LearningRateSetter interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// PlateauScheduler multiplies the learning rate by factor once the validation
// loss has not improved for more than patience epochs.
type PlateauScheduler struct {
	target   LearningRateSetter
	factor   float64
	patience int
	minLR    float64

	best      float64
	badEpochs int
}

// NewPlateauScheduler creates a reduce-on-plateau scheduler
func NewPlateauScheduler(target LearningRateSetter, factor float64, patience int, minLR float64) *PlateauScheduler {
	return &PlateauScheduler{
		target:   target,
		factor:   factor,
		patience: patience,
		minLR:    minLR,
		best:     math.Inf(1),
	}
}

// Step implements Scheduler
func (s *PlateauScheduler) Step(valLoss float64) {
	if valLoss < s.best {
		s.best = valLoss
		s.badEpochs = 0
		return
	}

	s.badEpochs++
	if s.badEpochs > s.patience {
		lr := math.Max(s.target.LearningRate()*s.factor, s.minLR)
		s.target.SetLearningRate(lr)
		s.badEpochs = 0
	}
}
