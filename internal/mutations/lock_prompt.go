package mutations

import (
	"permit-engine/internal/lock"
	"permit-engine/internal/metrics"
	"permit-engine/internal/model"
)

type lockPromptProps struct {
	Category model.ExamCategory `json:"category" validate:"required"`
}

// LockPromptHandler answers the open lock confirmation prompt. Confirm
// selects between confirm_lock and decline_lock.
type LockPromptHandler struct {
	Confirm bool
}

func (h *LockPromptHandler) Validate(_ *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props lockPromptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	return checkCategory(props.Category)
}

func (h *LockPromptHandler) Apply(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props lockPromptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}

	pending := state.Pending()
	answer := "decline"
	var err error
	if h.Confirm {
		answer = "confirm"
		_, err = state.Confirm(props.Category)
	} else {
		_, err = state.Decline(props.Category)
	}
	if err != nil {
		return rejection(err)
	}
	metrics.LockPrompts.WithLabelValues(string(pending.Trigger), answer).Inc()
	return nil
}
