package training

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"flow-trainer/core/earlystop"
	"flow-trainer/core/models"
	"flow-trainer/logging"

	"github.com/stretchr/testify/require"
)

const (
	splitTrain = iota
	splitVal
	splitTest
)

// scriptedModel returns val losses from a script, one per epoch
type scriptedModel struct {
	valLosses  []float64
	trainSteps int
	epoch      int
	seenLens   [][]int
	failAt     int
}

func (m *scriptedModel) Step(_ context.Context, mode Mode, b *Batch) (float64, error) {
	m.seenLens = append(m.seenLens, append([]int(nil), b.Lengths...))
	if mode == ModeTrain {
		m.trainSteps++
		if m.failAt > 0 && m.trainSteps == m.failAt {
			return 0, errors.New("loss is NaN")
		}
		return 1, nil
	}
	switch int(b.X0[0][0]) {
	case splitTrain:
		return 2, nil
	case splitVal:
		// one validation batch per epoch
		m.epoch++
		return m.valLosses[m.epoch-1], nil
	default:
		return 3, nil
	}
}

func (m *scriptedModel) State() models.ModelState {
	return models.ModelState{"epoch": {float64(m.epoch)}}
}

type recorder struct {
	saved     []int
	progress  []bool
	trainTime time.Duration
	status    models.RunStatus
	saves     int
}

func (r *recorder) SaveModel(_ context.Context, epoch int, _ float64, state models.ModelState) error {
	r.saved = append(r.saved, epoch)
	if state["epoch"][0] != float64(epoch) {
		return errors.New("stale state")
	}
	return nil
}

func (r *recorder) RegisterProgress(_ context.Context, _, _, _ float64, isBest bool) {
	r.progress = append(r.progress, isBest)
}

func (r *recorder) Save(_ context.Context, trainTime time.Duration, status models.RunStatus) error {
	r.saves++
	r.trainTime = trainTime
	r.status = status
	return nil
}

type countingScheduler struct{ losses []float64 }

func (s *countingScheduler) Step(valLoss float64) { s.losses = append(s.losses, valLoss) }

func splitBatch(split int, lengths ...int) *Batch {
	b := &Batch{Lengths: lengths}
	for range lengths {
		b.X0 = append(b.X0, []float64{float64(split)})
		b.T = append(b.T, []float64{0})
		b.Y = append(b.Y, [][]float64{{0}})
		b.U = append(b.U, make([][]float64, 8))
	}
	return b
}

func testData() Data {
	return Data{
		Train: []*Batch{splitBatch(splitTrain, 5, 2, 8, 1), splitBatch(splitTrain, 3)},
		Val:   []*Batch{splitBatch(splitVal, 1, 4)},
		Test:  []*Batch{splitBatch(splitTest, 2)},
	}
}

func TestRunStopsEarly(t *testing.T) {
	model := &scriptedModel{valLosses: []float64{5, 4, 4.5, 4.2, 4.1, 1}}
	rec := &recorder{}
	sched := &countingScheduler{}
	var out bytes.Buffer

	loop := NewLoop(model, sched, earlystop.New(3, 0), rec, testData(), 100, &out)
	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateStoppedEarly, result.State)
	require.Equal(t, StateStoppedEarly, loop.State())
	require.Equal(t, 5, result.Epochs)
	require.Equal(t, 4.0, result.BestValLoss)
	require.Equal(t, 10, model.trainSteps)

	require.Equal(t, []int{1, 2}, rec.saved)
	require.Equal(t, []bool{true, true, false, false, false}, rec.progress)
	require.Equal(t, 1, rec.saves)
	require.Equal(t, models.RunStatusStoppedEarly, rec.status)
	require.Equal(t, result.Duration, rec.trainTime)
	require.Equal(t, []float64{5, 4, 4.5, 4.2, 4.1}, sched.losses)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	require.Equal(t, "Epoch ::     Loss (Train) ::       Loss (Val) ::      Loss (Test) ::       Best (Val)", lines[0])
	require.Equal(t, strings.Repeat("=", len(lines[0])), lines[1])
	require.Equal(t, "    1 ::     2.000000e+00 ::     5.000000e+00 ::     3.000000e+00 ::     5.000000e+00", lines[2])
}

func TestRunCompletes(t *testing.T) {
	model := &scriptedModel{valLosses: []float64{3, 2, 1}}
	rec := &recorder{}

	result, err := NewLoop(model, nil, earlystop.New(5, 0), rec, testData(), 3, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	require.Equal(t, 3, result.Epochs)
	require.Equal(t, []int{1, 2, 3}, rec.saved)
	require.Equal(t, models.RunStatusCompleted, rec.status)
}

func TestRunLogsStoppingRule(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var logs bytes.Buffer
	logging.Setup(&logs, "info", true)

	_, err := NewLoop(&scriptedModel{valLosses: []float64{3}}, nil, earlystop.New(7, 0.25), &recorder{}, testData(), 1, nil).Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, logs.String(), `"msg":"Training started"`)
	require.Contains(t, logs.String(), `"es_patience":7`)
	require.Contains(t, logs.String(), `"es_delta":0.25`)
}

func TestRunZeroEpochs(t *testing.T) {
	model := &scriptedModel{}
	rec := &recorder{}

	result, err := NewLoop(model, nil, earlystop.New(5, 0), rec, Data{}, 0, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	require.Zero(t, result.Epochs)
	require.Zero(t, model.trainSteps)
	require.Empty(t, model.seenLens)
	require.Less(t, result.Duration, time.Second)
	require.Equal(t, 1, rec.saves)
}

func TestRunSortsBatchesBeforeEveryPass(t *testing.T) {
	model := &scriptedModel{valLosses: []float64{1}}
	_, err := NewLoop(model, nil, earlystop.New(1, 0), &recorder{}, testData(), 1, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []int{8, 5, 2, 1}, model.seenLens[0])
	for _, lens := range model.seenLens {
		for i := 1; i < len(lens); i++ {
			require.GreaterOrEqual(t, lens[i-1], lens[i])
		}
	}
}

func TestRunPropagatesModelFailure(t *testing.T) {
	model := &scriptedModel{valLosses: []float64{1, 1}, failAt: 3}
	rec := &recorder{}

	_, err := NewLoop(model, nil, earlystop.New(5, 0), rec, testData(), 5, nil).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "epoch 2: training batch 0")
	require.Zero(t, rec.saves)
}

func TestRunRejectsEmptySplit(t *testing.T) {
	data := testData()
	data.Val = nil

	_, err := NewLoop(&scriptedModel{}, nil, earlystop.New(5, 0), &recorder{}, data, 5, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedModel{valLosses: []float64{1}}
	_, err := NewLoop(model, nil, earlystop.New(5, 0), &recorder{}, testData(), 5, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, model.trainSteps)
}
