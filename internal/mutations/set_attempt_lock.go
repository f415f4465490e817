package mutations

import (
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

type setAttemptLockProps struct {
	Category model.ExamCategory `json:"category" validate:"required"`
	Index    *int               `json:"index" validate:"required,gte=0"`
	Locked   *bool              `json:"locked" validate:"required"`
}

// SetAttemptLockHandler locks or unlocks one attempt. The mutation must be
// flagged privileged.
type SetAttemptLockHandler struct{}

func (h *SetAttemptLockHandler) Validate(_ *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props setAttemptLockProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	return checkCategory(props.Category)
}

func (h *SetAttemptLockHandler) Apply(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props setAttemptLockProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	_, err := state.SetAttemptLock(props.Category, *props.Index, *props.Locked, mutation.Privileged)
	return rejection(err)
}
