package assessment

import (
	"errors"
	"fmt"
)

var (
	ErrIncomplete            = errors.New("assessment: incomplete form")
	ErrOutOfRange            = errors.New("assessment: value out of range")
	ErrPredictionUnavailable = errors.New("assessment: prediction unavailable")
	ErrSubmitInFlight        = errors.New("assessment: submission already in progress")
	ErrFormClosed            = errors.New("assessment: form closed")
	ErrFormReset             = errors.New("assessment: form reset during submission")
	ErrUnknownField          = errors.New("assessment: unknown field")
)

// PredictionFailedMessage is what the clinician sees when the model cannot be reached.
const PredictionFailedMessage = "Failed to get prediction from model. Please try again."

// ValidationError blocks a submission. Fields holds one message per failing field.
type ValidationError struct {
	Fields     ValidationResult
	Incomplete bool
}

func newValidationError(result ValidationResult) *ValidationError {
	e := &ValidationError{Fields: result}
	for _, msg := range result {
		if msg == RequiredMessage {
			e.Incomplete = true
			break
		}
	}
	return e
}

func (e *ValidationError) Error() string {
	if e.Incomplete {
		return IncompleteMessage
	}
	return InvalidMessage
}

func (e *ValidationError) Unwrap() error {
	if e.Incomplete {
		return ErrIncomplete
	}
	return ErrOutOfRange
}

// PredictionError reports a remote failure for a test with no local fallback.
type PredictionError struct {
	Test string
	Err  error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("assessment: %s prediction unavailable: %v", e.Test, e.Err)
}

func (e *PredictionError) Unwrap() []error {
	return []error{ErrPredictionUnavailable, e.Err}
}

// UserMessage maps an error from this package to the text shown to the clinician.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrPredictionUnavailable):
		return PredictionFailedMessage
	case errors.Is(err, ErrSubmitInFlight):
		return "A result is already being calculated."
	case errors.Is(err, ErrFormReset):
		return "The form was reset before the result arrived."
	default:
		return "Something went wrong. Please try again."
	}
}
