package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotEnrolled       = errors.New("student is not enrolled in subject")
	ErrAlreadySubmitted  = errors.New("report already submitted for this week")
	ErrInvalidTransition = errors.New("invalid feedback transition")
	ErrNotApproved       = errors.New("feedback is not approved")
	ErrAlreadyGenerated  = errors.New("feedback already generated")
	ErrNotFound          = errors.New("not found")
	ErrLowConfidence     = errors.New("match confidence below threshold")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrDelivery          = errors.New("notification delivery failed")
)

// ValidationError describes a caller-correctable problem with one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransitionError is returned when a feedback action is not allowed from the
// current state. Allowed lists the actions that are valid right now.
type TransitionError struct {
	From    string
	Action  string
	Allowed []string
	cause   error
}

func (e *TransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("cannot %s feedback in state %s (allowed: %s)", e.Action, e.From, allowed)
}

func (e *TransitionError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return ErrInvalidTransition
}

func NewTransitionError(from, action string, allowed []string, cause error) error {
	return &TransitionError{From: from, Action: action, Allowed: allowed, cause: cause}
}

type TransientError struct {
	Err     error
	Message string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %s - %s", e.Message, e.Err.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func NewTransientError(err error, message string) error {
	return &TransientError{Err: err, Message: message}
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
