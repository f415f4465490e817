package model

// Situation is the attempt-tracking state of one case as exchanged with the
// presentation layer.
type Situation struct {
	CaseID        string              `json:"case_id"`
	Categories    []CategorySituation `json:"categories"`
	Session       SessionState        `json:"session"`
	PendingPrompt *Prompt             `json:"pending_prompt"`
	Verdict       *StatusView         `json:"verdict,omitempty"`
}

type CategorySituation struct {
	Category      ExamCategory `json:"category"`
	Attempts      []Attempt    `json:"attempts"`
	LockedIndices []int        `json:"locked_indices"`
	// LegacyStatus is the status stored on records that predate per-attempt
	// tracking.
	LegacyStatus Status      `json:"legacy_status,omitempty"`
	SuccessArmed bool        `json:"success_armed,omitempty"`
	Status       *StatusView `json:"status,omitempty"`
	LockState    LockState   `json:"lock_state,omitempty"`
}

// Category returns the entry for c, or nil.
func (s *Situation) Category(c ExamCategory) *CategorySituation {
	for i := range s.Categories {
		if s.Categories[i].Category == c {
			return &s.Categories[i]
		}
	}
	return nil
}

type LockState string

const (
	LockUnlocked                   LockState = "unlocked"
	LockPendingSuccessConfirmation LockState = "pending_success_confirmation"
	LockPendingFailureConfirmation LockState = "pending_failure_confirmation"
	LockLocked                     LockState = "locked"
)

type PromptTrigger string

const (
	TriggerSuccess PromptTrigger = "success"
	TriggerFailure PromptTrigger = "failure"
)

// Prompt is the lock-confirmation dialog currently awaiting an answer.
type Prompt struct {
	Category ExamCategory  `json:"category"`
	Trigger  PromptTrigger `json:"trigger"`
}

// SessionState lists, per trigger, the categories whose prompt was declined
// during the current view.
type SessionState struct {
	DeclinedSuccess []ExamCategory `json:"declined_success"`
	DeclinedFailure []ExamCategory `json:"declined_failure"`
}
