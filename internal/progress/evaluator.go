package progress

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"permit-engine/internal/logger"
	"permit-engine/internal/metrics"
	"permit-engine/internal/model"
)

// ErrStaleGeneration stops a run whose case list has been replaced.
var ErrStaleGeneration = errors.New("progress: case list replaced during evaluation")

const (
	DefaultBatchSize  = 5
	DefaultBatchPause = 100 * time.Millisecond
)

type DocumentSource interface {
	Documents(ctx context.Context, caseID string) ([]model.Document, error)
}

type CircuitSource interface {
	CircuitForRequestType(ctx context.Context, requestType string) (*model.Circuit, error)
	CircuitStages(ctx context.Context, circuitID string) ([]model.Stage, error)
}

type Config struct {
	BatchSize  int
	BatchPause time.Duration
}

// Evaluator computes progress for many cases in fixed-size batches. Document
// fetches inside a batch run concurrently; batches run one after another
// with a pause in between, and each finished batch is published to the
// board before the next one starts.
type Evaluator struct {
	docs     DocumentSource
	circuits CircuitSource
	calc     *Calculator
	cfg      Config
	log      *logger.Logger
}

func NewEvaluator(docs DocumentSource, circuits CircuitSource, calc *Calculator, cfg Config, log *logger.Logger) *Evaluator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if calc == nil {
		calc = NewCalculator(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{docs: docs, circuits: circuits, calc: calc, cfg: cfg, log: log.With("service", "ProgressEvaluator")}
}

// Result lists what one run produced.
type Result struct {
	Summaries map[string]model.ProgressSummary
	// Failed holds the cases whose documents could not be fetched; they are
	// present in Summaries with a pending, zero-progress summary.
	Failed []string
}

// Run evaluates cases for the given board generation. A failure to fetch one
// case never aborts its batch. Run returns ErrStaleGeneration as soon as the
// board has moved on, and the context error if ctx ends between batches.
func (e *Evaluator) Run(ctx context.Context, board *Board, generation uint64, cases []model.CaseRef) (Result, error) {
	res := Result{Summaries: make(map[string]model.ProgressSummary, len(cases)), Failed: []string{}}
	circuits := e.resolveCircuits(ctx, cases)

	for start := 0; start < len(cases); start += e.cfg.BatchSize {
		if start > 0 && e.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(e.cfg.BatchPause):
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+e.cfg.BatchSize, len(cases))
		partial, failed := e.runBatch(ctx, cases[start:end], circuits)

		if board != nil && !board.Merge(generation, partial) {
			metrics.ProgressStaleBatches.Inc()
			e.log.Info("Discarding stale progress batch", "generation", generation, "batch_start", start)
			return res, ErrStaleGeneration
		}
		for id, s := range partial {
			res.Summaries[id] = s
		}
		res.Failed = append(res.Failed, failed...)
	}
	slices.Sort(res.Failed)
	return res, nil
}

func (e *Evaluator) runBatch(ctx context.Context, batch []model.CaseRef, circuits map[string]*model.Circuit) (map[string]model.ProgressSummary, []string) {
	started := time.Now()
	defer func() { metrics.ProgressBatchDuration.Observe(time.Since(started).Seconds()) }()

	var (
		mu      sync.Mutex
		partial = make(map[string]model.ProgressSummary, len(batch))
		failed  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for _, ref := range batch {
		g.Go(func() error {
			summary, err := e.evaluateCase(gctx, ref, circuits[ref.RequestType])
			mu.Lock()
			defer mu.Unlock()
			partial[ref.CaseID] = summary
			if err != nil {
				failed = append(failed, ref.CaseID)
			}
			return nil
		})
	}
	_ = g.Wait()
	return partial, failed
}

// evaluateCase never fails the batch: fetch errors and panics in a source
// both fall back to a pending summary.
func (e *Evaluator) evaluateCase(ctx context.Context, ref model.CaseRef, circuit *model.Circuit) (summary model.ProgressSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress: panic evaluating case %s: %v", ref.CaseID, r)
		}
		if err != nil {
			metrics.ProgressCasesEvaluated.WithLabelValues("failed").Inc()
			e.log.Warn("Case progress defaulted to pending", "case_id", ref.CaseID, "error", err)
			summary = model.PendingSummary(ref.CaseID)
			return
		}
		metrics.ProgressCasesEvaluated.WithLabelValues("ok").Inc()
	}()

	docs, err := e.docs.Documents(ctx, ref.CaseID)
	if err != nil {
		return summary, fmt.Errorf("fetch documents: %w", err)
	}
	return e.calc.Calculate(ref.CaseID, circuit, docs), nil
}

// resolveCircuits looks up each distinct request type once for the whole
// run and backfills stage definitions the first lookup omitted.
func (e *Evaluator) resolveCircuits(ctx context.Context, cases []model.CaseRef) map[string]*model.Circuit {
	out := map[string]*model.Circuit{}
	if e.circuits == nil {
		return out
	}
	for _, ref := range cases {
		if ref.RequestType == "" {
			continue
		}
		if _, seen := out[ref.RequestType]; seen {
			continue
		}
		circuit, err := e.circuits.CircuitForRequestType(ctx, ref.RequestType)
		if err != nil {
			e.log.Warn("Circuit lookup failed", "request_type", ref.RequestType, "error", err)
			out[ref.RequestType] = nil
			continue
		}
		out[ref.RequestType] = e.backfill(ctx, circuit)
	}
	return out
}

func (e *Evaluator) backfill(ctx context.Context, circuit *model.Circuit) *model.Circuit {
	if !circuit.NeedsBackfill() {
		return circuit
	}
	stages, err := e.circuits.CircuitStages(ctx, circuit.ID)
	if err != nil {
		e.log.Warn("Circuit stage backfill failed", "circuit_id", circuit.ID, "error", err)
		return withoutStages(circuit)
	}
	merged := MergeStages(circuit, stages)
	if len(merged.Stages) == 0 && len(circuit.Stages) > 0 {
		e.log.Warn("Circuit stages still undefined after backfill", "circuit_id", circuit.ID)
	}
	return merged
}

// MergeStages returns a copy of circuit completed with fetched stage
// definitions. Stages are matched by id, then by label; a circuit without
// stages takes the fetched list as is. If any stage is still undefined the
// copy has no stages, so it evaluates as pending rather than complete.
func MergeStages(circuit *model.Circuit, fetched []model.Stage) *model.Circuit {
	c := *circuit
	fetched = slices.Clone(fetched)
	slices.SortStableFunc(fetched, func(a, b model.Stage) int { return a.Order - b.Order })

	if len(c.Stages) == 0 {
		c.Stages = fetched
	} else {
		c.Stages = slices.Clone(c.Stages)
		for i, s := range c.Stages {
			if s.Pieces != nil {
				continue
			}
			for _, f := range fetched {
				if (s.ID != "" && f.ID == s.ID) || (s.ID == "" && f.Label == s.Label) {
					c.Stages[i].Pieces = f.Pieces
					break
				}
			}
		}
	}
	for _, st := range c.Stages {
		if st.Pieces == nil {
			return withoutStages(&c)
		}
	}
	return &c
}

// withoutStages strips the stage list of a circuit whose definitions are
// incomplete. Calculate reports such a circuit as pending at 0%.
func withoutStages(circuit *model.Circuit) *model.Circuit {
	c := *circuit
	c.Stages = nil
	return &c
}
