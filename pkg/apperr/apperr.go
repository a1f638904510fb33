// Package apperr defines the typed error kinds raised across the survey
// core (form validation, session access, expression evaluation, and
// garbling/persistence concurrency control).
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context.
// Callers should use errors.Is to test for these.
var (
	// ErrValueMissing is raised when reading a response value that has
	// never been set.
	ErrValueMissing = errors.New("value does not exist")

	// ErrLanguageMissing is raised when resolving localized text without
	// a usable language selected.
	ErrLanguageMissing = errors.New("no usable language selected")

	// ErrConcurrencyConflict is raised when an optimistic-locking commit
	// loses a race against a concurrent writer of the same garbling block.
	ErrConcurrencyConflict = errors.New("submission missed; please retry")

	// ErrResubmission is raised when a respondent attempts to submit a
	// second survey response.
	ErrResubmission = errors.New("already submitted")

	// ErrElementNotFound is raised when a looked-up record is missing;
	// pkg/storage returns it for a respondent uuid with no roster row.
	ErrElementNotFound = errors.New("survey element not found")
)

// FormInvalidError reports a structural defect found while validating a
// form tree (§4.1).
type FormInvalidError struct {
	Reason string
}

func (e *FormInvalidError) Error() string {
	return fmt.Sprintf("form invalid: %s", e.Reason)
}

// NewFormInvalid builds a FormInvalidError with a formatted reason.
func NewFormInvalid(format string, args ...any) error {
	return &FormInvalidError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedFunctionError reports that a formula references an XLSForm
// function with no host-side implementation.
type UnsupportedFunctionError struct {
	Name string
}

func (e *UnsupportedFunctionError) Error() string {
	return fmt.Sprintf("unsupported XLSForm function: %s", e.Name)
}

// ConstraintViolatedError reports that set_value rejected a new response
// value because the node's constraint formula evaluated false. Message is
// the resolved constraint_message text, if any, to surface inline.
type ConstraintViolatedError struct {
	Element string
	Message string
}

func (e *ConstraintViolatedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("constraint violated for %s: %s", e.Element, e.Message)
	}
	return fmt.Sprintf("constraint violated for %s", e.Element)
}

// PersistenceFailureError wraps an unclassified storage error. The
// interpreter's in-memory session state is left untouched when this is
// returned, so the caller may retry.
type PersistenceFailureError struct {
	Op  string
	Err error
}

func (e *PersistenceFailureError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceFailureError) Unwrap() error { return e.Err }

// NewPersistenceFailure wraps a lower-level storage error for surfacing
// as a generic internal error without leaking adapter internals.
func NewPersistenceFailure(op string, err error) error {
	return &PersistenceFailureError{Op: op, Err: err}
}
