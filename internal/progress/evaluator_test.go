package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-engine/internal/model"
)

type fakeDocs struct {
	mu       sync.Mutex
	byCase   map[string][]model.Document
	failFor  map[string]bool
	inFlight int32
	peak     int32
	calls    []string
}

func (f *fakeDocs) Documents(_ context.Context, caseID string) ([]model.Document, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, caseID)
	f.mu.Unlock()
	if f.failFor[caseID] {
		return nil, errors.New("upstream timeout")
	}
	return f.byCase[caseID], nil
}

type fakeCircuits struct {
	lookups  atomic.Int32
	backfill atomic.Int32
	circuit  model.Circuit
	stages   []model.Stage

	// stagesErr makes every stage backfill fail.
	stagesErr error
}

func (f *fakeCircuits) CircuitForRequestType(_ context.Context, requestType string) (*model.Circuit, error) {
	f.lookups.Add(1)
	if requestType == "unknown" {
		return nil, errors.New("no circuit")
	}
	c := f.circuit
	return &c, nil
}

func (f *fakeCircuits) CircuitStages(_ context.Context, _ string) ([]model.Stage, error) {
	f.backfill.Add(1)
	if f.stagesErr != nil {
		return nil, f.stagesErr
	}
	return f.stages, nil
}

func fiveCases() []model.CaseRef {
	var refs []model.CaseRef
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		refs = append(refs, model.CaseRef{CaseID: id, RequestType: "permis_b"})
	}
	return refs
}

func newFixture() (*fakeDocs, *fakeCircuits) {
	docs := &fakeDocs{byCase: map[string][]model.Document{}, failFor: map[string]bool{"3": true}}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		docs.byCase[id] = []model.Document{{ID: "d" + id, PieceJustificationID: "p1", DocumentableID: id, Valide: true}}
	}
	circuits := &fakeCircuits{
		circuit: model.Circuit{ID: "circ", Stages: []model.Stage{{ID: "s1", Label: "Pièces"}, {ID: "s2", Label: "Examen"}}},
		stages: []model.Stage{
			{ID: "s1", Label: "Pièces", Pieces: []model.Piece{{PieceID: "p1"}}},
			{ID: "s2", Label: "Examen", Pieces: []model.Piece{{PieceID: "p2"}}},
		},
	}
	return docs, circuits
}

func TestRunSurvivesFailingCase(t *testing.T) {
	docs, circuits := newFixture()
	var merges []int
	board := NewBoard(func(_ uint64, partial map[string]model.ProgressSummary) {
		merges = append(merges, len(partial))
	})
	gen := board.Reset()

	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 2, BatchPause: time.Millisecond}, nil)
	res, err := ev.Run(context.Background(), board, gen, fiveCases())
	require.NoError(t, err)

	require.Len(t, res.Summaries, 5)
	assert.Equal(t, []string{"3"}, res.Failed)
	assert.Equal(t, model.PendingSummary("3"), res.Summaries["3"])
	for _, id := range []string{"1", "2", "4", "5"} {
		assert.Equal(t, 50, res.Summaries[id].ProgressPercent, id)
		assert.Equal(t, model.ProgressInProgress, res.Summaries[id].Status, id)
	}

	assert.Equal(t, []int{2, 2, 1}, merges, "published batch by batch")
	assert.Len(t, board.Snapshot(), 5)
	assert.EqualValues(t, 1, circuits.lookups.Load(), "circuit resolved once per request type")
	assert.EqualValues(t, 1, circuits.backfill.Load())
	assert.LessOrEqual(t, atomic.LoadInt32(&docs.peak), int32(2))
}

func TestRunStopsOnStaleGeneration(t *testing.T) {
	docs, circuits := newFixture()
	var board *Board
	board = NewBoard(func(gen uint64, _ map[string]model.ProgressSummary) {
		if gen == 1 {
			board.Reset()
		}
	})
	gen := board.Reset()
	require.EqualValues(t, 1, gen)

	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 2}, nil)
	res, err := ev.Run(context.Background(), board, gen, fiveCases())
	assert.ErrorIs(t, err, ErrStaleGeneration)
	assert.Len(t, res.Summaries, 2)
	assert.Empty(t, board.Snapshot(), "newer generation untouched")
	assert.EqualValues(t, 2, board.Generation())
}

func TestRunUnknownCircuitIsPending(t *testing.T) {
	docs, circuits := newFixture()
	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 5}, nil)
	res, err := ev.Run(context.Background(), nil, 0, []model.CaseRef{{CaseID: "1", RequestType: "unknown"}, {CaseID: "2"}})
	require.NoError(t, err)
	assert.Equal(t, model.ProgressPending, res.Summaries["1"].Status)
	assert.Equal(t, 1, res.Summaries["1"].DocumentsCount)
	assert.Equal(t, model.ProgressPending, res.Summaries["2"].Status)
	assert.Empty(t, res.Failed)
}

func TestRunHonoursCancellation(t *testing.T) {
	docs, circuits := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	board := NewBoard(func(uint64, map[string]model.ProgressSummary) { cancel() })
	gen := board.Reset()

	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 2, BatchPause: time.Second}, nil)
	res, err := ev.Run(ctx, board, gen, fiveCases())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Summaries, 2)
}

func TestRunFailedBackfillIsPending(t *testing.T) {
	docs, circuits := newFixture()
	circuits.stagesErr = errors.New("etapes unavailable")
	docs.byCase["1"] = nil

	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 5}, nil)
	res, err := ev.Run(context.Background(), nil, 0, []model.CaseRef{
		{CaseID: "1", RequestType: "permis_b"},
		{CaseID: "2", RequestType: "permis_b"},
	})
	require.NoError(t, err)
	for _, id := range []string{"1", "2"} {
		s := res.Summaries[id]
		assert.Equal(t, 0, s.ProgressPercent, id)
		assert.Equal(t, model.ProgressPending, s.Status, id)
		assert.Nil(t, s.CurrentStageLabel, id)
		assert.Zero(t, s.TotalStages, id)
	}
	assert.Equal(t, 1, res.Summaries["2"].DocumentsValidated, "counts still reported")
	assert.EqualValues(t, 1, circuits.backfill.Load())
	assert.Empty(t, res.Failed)
}

func TestRunUnmatchedBackfillIsPending(t *testing.T) {
	docs, circuits := newFixture()
	circuits.stages = circuits.stages[:1]

	ev := NewEvaluator(docs, circuits, nil, Config{BatchSize: 5}, nil)
	res, err := ev.Run(context.Background(), nil, 0, []model.CaseRef{{CaseID: "1", RequestType: "permis_b"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summaries["1"].ProgressPercent)
	assert.Equal(t, model.ProgressPending, res.Summaries["1"].Status)
}
