package mutations

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"permit-engine/internal/ingest"
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

var validate = validator.New()

func critical(code, format string, args ...any) model.CalculationMessage {
	return model.CalculationMessage{Level: model.LevelCritical, Code: code, Message: fmt.Sprintf(format, args...)}
}

func warning(code, format string, args ...any) model.CalculationMessage {
	return model.CalculationMessage{Level: model.LevelWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// decode unmarshals and validates the mutation properties into out. A
// non-nil message means the mutation is malformed.
func decode(mutation *model.Mutation, out any) *model.CalculationMessage {
	if len(mutation.MutationProperties) == 0 {
		msg := critical(model.CodeInvalidProperties, "%s: mutation_properties are required", mutation.MutationDefinitionName)
		return &msg
	}
	if err := json.Unmarshal(mutation.MutationProperties, out); err != nil {
		msg := critical(model.CodeInvalidProperties, "%s: %v", mutation.MutationDefinitionName, err)
		return &msg
	}
	if err := validate.Struct(out); err != nil {
		msg := critical(model.CodeInvalidProperties, "%s: %v", mutation.MutationDefinitionName, err)
		return &msg
	}
	return nil
}

func checkCategory(c model.ExamCategory) []model.CalculationMessage {
	if c.Valid() {
		return nil
	}
	return []model.CalculationMessage{critical(model.CodeInvalidCategory, "Unknown exam category %q", c)}
}

// attemptDate parses the attempt date, falling back to the mutation's
// actual_at when none was given.
func attemptDate(date, actualAt string) (time.Time, bool) {
	if date == "" {
		date = actualAt
	}
	if date == "" {
		return time.Time{}, false
	}
	return ingest.ParseDate(date)
}

var rejectionCodes = []struct {
	err  error
	code string
}{
	{lock.ErrUnknownCategory, model.CodeInvalidCategory},
	{lock.ErrInvalidResult, model.CodeInvalidResult},
	{lock.ErrAttemptNotFound, model.CodeAttemptNotFound},
	{lock.ErrAttemptLocked, model.CodeAttemptLocked},
	{lock.ErrAttemptCapReached, model.CodeAttemptCapReached},
	{lock.ErrAddInFlight, model.CodeAddInFlight},
	{lock.ErrNoAddInFlight, model.CodeAddInFlight},
	{lock.ErrNotPrivileged, model.CodeNotPrivileged},
	{lock.ErrNoPendingPrompt, model.CodeNoPendingPrompt},
	{lock.ErrPromptMismatch, model.CodePromptMismatch},
}

// rejection converts a coordinator error into a WARNING message.
func rejection(err error) []model.CalculationMessage {
	if err == nil {
		return nil
	}
	code := model.CodeInvalidProperties
	for _, rc := range rejectionCodes {
		if errors.Is(err, rc.err) {
			code = rc.code
			break
		}
	}
	return []model.CalculationMessage{warning(code, "%v", err)}
}
