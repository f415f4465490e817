package mutations

import (
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

// ResetSessionHandler forgets declined prompts, as when the operator leaves
// the case list and comes back.
type ResetSessionHandler struct{}

func (h *ResetSessionHandler) Validate(_ *lock.Coordinator, _ *model.Mutation) []model.CalculationMessage {
	return nil
}

func (h *ResetSessionHandler) Apply(state *lock.Coordinator, _ *model.Mutation) []model.CalculationMessage {
	state.ResetSession()
	return nil
}
