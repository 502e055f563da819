// Package flow contains a reference flow model used by the command-line
// trainer. The state is propagated linearly in time:
//
//	y(t) = x0 + t * (W x0 + B ū + c)
//
// where ū is the mean of the valid control inputs. Parameters are fitted
// with plain gradient descent on the mean squared error.
package flow

import (
	"context"
	"fmt"

	"flow-trainer/core/models"
	"flow-trainer/training"
)

// LinearFlow implements training.Model and training.LearningRateSetter
type LinearFlow struct {
	stateDim   int
	controlDim int
	w          []float64 // stateDim x stateDim, row-major
	b          []float64 // stateDim x controlDim, row-major
	c          []float64 // stateDim
	lr         float64
}

// NewLinearFlow creates a zero-initialised model
func NewLinearFlow(stateDim, controlDim int, lr float64) *LinearFlow {
	return &LinearFlow{
		stateDim:   stateDim,
		controlDim: controlDim,
		w:          make([]float64, stateDim*stateDim),
		b:          make([]float64, stateDim*controlDim),
		c:          make([]float64, stateDim),
		lr:         lr,
	}
}

// FromState rebuilds a model from a persisted state
func FromState(state models.ModelState, lr float64) (*LinearFlow, error) {
	shape := state["shape"]
	if len(shape) != 2 {
		return nil, fmt.Errorf("model state has no shape")
	}
	m := NewLinearFlow(int(shape[0]), int(shape[1]), lr)
	for name, dst := range map[string][]float64{"w": m.w, "b": m.b, "c": m.c} {
		if len(state[name]) != len(dst) {
			return nil, fmt.Errorf("model state %s has %d values, expected %d", name, len(state[name]), len(dst))
		}
		copy(dst, state[name])
	}
	return m, nil
}

// LearningRate returns the current step size
func (m *LinearFlow) LearningRate() float64 { return m.lr }

// SetLearningRate changes the step size used by later training steps
func (m *LinearFlow) SetLearningRate(lr float64) { m.lr = lr }

// Dims returns the state and control dimensions
func (m *LinearFlow) Dims() (stateDim, controlDim int) { return m.stateDim, m.controlDim }

// Predict returns the predicted state at every time in t for a system that
// starts at x0 and is driven by the controls u
func (m *LinearFlow) Predict(x0, t []float64, u [][]float64) ([][]float64, error) {
	if len(x0) != m.stateDim {
		return nil, fmt.Errorf("state dimension %d, model expects %d", len(x0), m.stateDim)
	}
	v := m.velocity(x0, m.meanControl(u, len(u)))

	out := make([][]float64, len(t))
	for k, tk := range t {
		y := make([]float64, m.stateDim)
		for d := range y {
			y[d] = x0[d] + tk*v[d]
		}
		out[k] = y
	}
	return out, nil
}

// State implements training.Model
func (m *LinearFlow) State() models.ModelState {
	params := models.ModelState{"w": m.w, "b": m.b, "c": m.c}
	state := params.Clone()
	state["shape"] = []float64{float64(m.stateDim), float64(m.controlDim)}
	return state
}

// Step implements training.Model
func (m *LinearFlow) Step(ctx context.Context, mode training.Mode, batch *training.Batch) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := batch.Validate(); err != nil {
		return 0, err
	}

	var gw, gb, gc []float64
	if mode == training.ModeTrain {
		gw = make([]float64, len(m.w))
		gb = make([]float64, len(m.b))
		gc = make([]float64, len(m.c))
	}

	sqErr, count := 0.0, 0
	type pending struct {
		x0, ubar, dv []float64
	}
	var grads []pending

	for i := 0; i < batch.Len(); i++ {
		x0 := batch.X0[i]
		if len(x0) != m.stateDim {
			return 0, fmt.Errorf("example %d: state dimension %d, model expects %d", i, len(x0), m.stateDim)
		}
		ubar := m.meanControl(batch.U[i], batch.Lengths[i])
		v := m.velocity(x0, ubar)

		dv := make([]float64, m.stateDim)
		for k, t := range batch.T[i] {
			y := batch.Y[i][k]
			for d := 0; d < m.stateDim; d++ {
				diff := x0[d] + t*v[d] - y[d]
				sqErr += diff * diff
				dv[d] += 2 * diff * t
				count++
			}
		}
		if mode == training.ModeTrain {
			grads = append(grads, pending{x0: x0, ubar: ubar, dv: dv})
		}
	}

	if count == 0 {
		return 0, nil
	}
	loss := sqErr / float64(count)

	if mode == training.ModeTrain {
		scale := 1 / float64(count)
		for _, g := range grads {
			for d := 0; d < m.stateDim; d++ {
				dv := g.dv[d] * scale
				for j := 0; j < m.stateDim; j++ {
					gw[d*m.stateDim+j] += dv * g.x0[j]
				}
				for j := 0; j < m.controlDim; j++ {
					gb[d*m.controlDim+j] += dv * g.ubar[j]
				}
				gc[d] += dv
			}
		}
		sgd(m.w, gw, m.lr)
		sgd(m.b, gb, m.lr)
		sgd(m.c, gc, m.lr)
	}

	return loss, nil
}

func (m *LinearFlow) meanControl(u [][]float64, length int) []float64 {
	mean := make([]float64, m.controlDim)
	if length == 0 {
		return mean
	}
	for k := 0; k < length; k++ {
		for j := 0; j < m.controlDim && j < len(u[k]); j++ {
			mean[j] += u[k][j]
		}
	}
	for j := range mean {
		mean[j] /= float64(length)
	}
	return mean
}

func (m *LinearFlow) velocity(x0, ubar []float64) []float64 {
	v := make([]float64, m.stateDim)
	for d := 0; d < m.stateDim; d++ {
		s := m.c[d]
		for j := 0; j < m.stateDim; j++ {
			s += m.w[d*m.stateDim+j] * x0[j]
		}
		for j := 0; j < m.controlDim; j++ {
			s += m.b[d*m.controlDim+j] * ubar[j]
		}
		v[d] = s
	}
	return v
}

func sgd(params, grads []float64, lr float64) {
	for i := range params {
		params[i] -= lr * grads[i]
	}
}
