// Package progress computes how far a case has advanced through its
// approval circuit.
package progress

import (
	"math"

	"permit-engine/internal/matcher"
	"permit-engine/internal/model"
)

type Calculator struct {
	matcher *matcher.Matcher
}

func NewCalculator(m *matcher.Matcher) *Calculator {
	if m == nil {
		m = matcher.New()
	}
	return &Calculator{matcher: m}
}

// Calculate evaluates circuit against the documents of caseID. docs may come
// from a shared collection; only documents owned by the case are considered,
// including in the reported counts. A missing or empty circuit yields a
// pending summary at 0%.
func (c *Calculator) Calculate(caseID string, circuit *model.Circuit, docs []model.Document) model.ProgressSummary {
	mine := matcher.FilterForCase(docs, caseID)
	out := model.PendingSummary(caseID)
	out.DocumentsCount, out.DocumentsValidated = matcher.CountValidated(mine)

	if circuit == nil || len(circuit.Stages) == 0 {
		return out
	}

	out.TotalStages = len(circuit.Stages)
	out.Stages = make([]model.StageProgress, 0, len(circuit.Stages))
	for _, stage := range circuit.Stages {
		sp := c.evaluateStage(stage, mine)
		if sp.Complete {
			out.CompletedStages++
		} else if out.CurrentStageLabel == nil {
			label := stage.Label
			out.CurrentStageLabel = &label
		}
		out.Stages = append(out.Stages, sp)
	}

	out.ProgressPercent = int(math.Round(100 * float64(out.CompletedStages) / float64(out.TotalStages)))
	out.Status = StatusFor(out.ProgressPercent)
	return out
}

// evaluateStage marks a stage complete when every required piece is
// satisfied; a stage without pieces is complete.
func (c *Calculator) evaluateStage(stage model.Stage, docs []model.Document) model.StageProgress {
	sp := model.StageProgress{
		Label:    stage.Label,
		Complete: true,
		Pieces:   make([]model.PieceProgress, 0, len(stage.Pieces)),
	}
	for _, piece := range stage.Pieces {
		m := c.matcher.Resolve(piece, docs)
		pp := model.PieceProgress{PieceID: piece.PieceID, Satisfied: m.Satisfied, MatchedBy: m.Resolver}
		for _, d := range m.Documents {
			pp.Documents = append(pp.Documents, d.ID)
		}
		if !m.Satisfied {
			sp.Complete = false
		}
		sp.Pieces = append(sp.Pieces, pp)
	}
	return sp
}

// StatusFor maps a percentage onto a progress status. Blocked is never
// derived here; see ApplyVeto.
func StatusFor(percent int) model.ProgressStatus {
	switch {
	case percent >= 100:
		return model.ProgressCompleted
	case percent > 0:
		return model.ProgressInProgress
	default:
		return model.ProgressPending
	}
}

// ApplyVeto marks a summary blocked on behalf of an external decision.
func ApplyVeto(s model.ProgressSummary) model.ProgressSummary {
	s.Status = model.ProgressBlocked
	return s
}
