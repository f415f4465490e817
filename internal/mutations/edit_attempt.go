package mutations

import (
	"fmt"

	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

// Absent fields keep the current value of the attempt.
type editAttemptProps struct {
	Category model.ExamCategory `json:"category" validate:"required"`
	Index    *int               `json:"index" validate:"required,gte=0"`
	Result   *model.Result      `json:"result"`
	Date     *string            `json:"date"`
	Note     *string            `json:"note"`
}

// EditAttemptHandler modifies an unlocked attempt in place.
type EditAttemptHandler struct{}

func (h *EditAttemptHandler) Validate(_ *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props editAttemptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	if msgs := checkCategory(props.Category); msgs != nil {
		return msgs
	}
	if props.Result != nil && !props.Result.Valid() {
		return []model.CalculationMessage{critical(model.CodeInvalidResult, "Unknown result %q", *props.Result)}
	}
	if props.Date != nil {
		if _, ok := attemptDate(*props.Date, ""); !ok {
			return []model.CalculationMessage{critical(model.CodeInvalidProperties, "Attempt date %q is invalid", *props.Date)}
		}
	}
	return nil
}

func (h *EditAttemptHandler) Apply(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props editAttemptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	idx := *props.Index
	list := state.Attempts(props.Category)
	if idx >= len(list) {
		return rejection(fmt.Errorf("%w: %s #%d", lock.ErrAttemptNotFound, props.Category, idx))
	}

	next := list[idx]
	if props.Result != nil {
		next.Result = *props.Result
	}
	if props.Date != nil {
		next.Date, _ = attemptDate(*props.Date, "")
	}
	if props.Note != nil {
		next.Note = *props.Note
	}
	_, err := state.EditAttempt(props.Category, idx, next)
	return rejection(err)
}
