package model

type CalculationMessage struct {
	ID      int    `json:"id"`
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
)

const (
	CodeUnknownMutation   = "UNKNOWN_MUTATION"
	CodeInvalidProperties = "INVALID_PROPERTIES"
	CodeInvalidCategory   = "INVALID_CATEGORY"
	CodeInvalidResult     = "INVALID_RESULT"
	CodeAttemptNotFound   = "ATTEMPT_NOT_FOUND"
	CodeAttemptLocked     = "ATTEMPT_LOCKED"
	CodeAttemptCapReached = "ATTEMPT_CAP_REACHED"
	CodeAddInFlight       = "ADD_IN_FLIGHT"
	CodeNotPrivileged     = "NOT_PRIVILEGED"
	CodeNoPendingPrompt   = "NO_PENDING_PROMPT"
	CodePromptMismatch    = "PROMPT_MISMATCH"
	CodeInvalidSituation  = "INVALID_SITUATION"
)
