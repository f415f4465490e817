package mutations

import (
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

type addAttemptProps struct {
	Category model.ExamCategory `json:"category" validate:"required"`
	Result   model.Result       `json:"result" validate:"required"`
	Date     string             `json:"date"`
	Note     string             `json:"note"`
}

// AddAttemptHandler appends a sitting to a category.
type AddAttemptHandler struct{}

func (h *AddAttemptHandler) Validate(_ *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props addAttemptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	if msgs := checkCategory(props.Category); msgs != nil {
		return msgs
	}
	if !props.Result.Valid() {
		return []model.CalculationMessage{critical(model.CodeInvalidResult, "Unknown result %q", props.Result)}
	}
	if _, ok := attemptDate(props.Date, mutation.ActualAt); !ok {
		return []model.CalculationMessage{critical(model.CodeInvalidProperties, "Attempt date %q is invalid", props.Date)}
	}
	return nil
}

func (h *AddAttemptHandler) Apply(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage {
	var props addAttemptProps
	if msg := decode(mutation, &props); msg != nil {
		return []model.CalculationMessage{*msg}
	}
	date, _ := attemptDate(props.Date, mutation.ActualAt)
	_, err := state.AddAttempt(props.Category, model.Attempt{
		Result: props.Result,
		Date:   date,
		Note:   props.Note,
	})
	return rejection(err)
}
