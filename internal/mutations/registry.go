package mutations

const (
	AddAttempt     = "add_attempt"
	EditAttempt    = "edit_attempt"
	ConfirmLock    = "confirm_lock"
	DeclineLock    = "decline_lock"
	SetAttemptLock = "set_attempt_lock"
	ResetSession   = "reset_session"
)

var registry = map[string]MutationHandler{
	AddAttempt:     &AddAttemptHandler{},
	EditAttempt:    &EditAttemptHandler{},
	ConfirmLock:    &LockPromptHandler{Confirm: true},
	DeclineLock:    &LockPromptHandler{},
	SetAttemptLock: &SetAttemptLockHandler{},
	ResetSession:   &ResetSessionHandler{},
}

func Get(name string) (MutationHandler, bool) {
	h, ok := registry[name]
	return h, ok
}
