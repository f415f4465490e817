package lock

import "errors"

// Rejections returned by the coordinator. None of them change state.
var (
	ErrUnknownCategory   = errors.New("unknown exam category")
	ErrInvalidResult     = errors.New("attempt result must be reussi, echoue or absent")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptLocked     = errors.New("attempt is locked")
	ErrAttemptCapReached = errors.New("attempt cap reached")
	ErrAddInFlight       = errors.New("an attempt is already being added to this category")
	ErrNoAddInFlight     = errors.New("no attempt is being added to this category")
	ErrNotPrivileged     = errors.New("lock toggling requires a privileged user")
	ErrNoPendingPrompt   = errors.New("no lock confirmation is pending")
	ErrPromptMismatch    = errors.New("pending lock confirmation is for another category")
)

