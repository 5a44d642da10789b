package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlanValidation           = errors.New("plan validation failed")
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	ErrKeywordExecution         = errors.New("keyword execution failed")
	ErrWiring                   = errors.New("wiring error")
	ErrInvalidChoice            = errors.New("value not in allowed choices")

	// ErrRegistryNotLoaded is returned by Execute when the keyword registry
	// has not been frozen by its loader yet.
	ErrRegistryNotLoaded = errors.New("keyword registry not loaded")
	ErrNilPlan           = errors.New("execution plan is nil")
	ErrRunCancelled      = errors.New("run cancelled")

	// ErrRunNotFound is returned when a run record does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// PlanValidationError collects every problem found while checking a plan
// against the registry. No flow runs when a plan fails validation.
type PlanValidationError struct {
	Issues []string
}

func (e *PlanValidationError) Error() string {
	return ErrPlanValidation.Error() + ": " + strings.Join(e.Issues, "; ")
}

func (e *PlanValidationError) Unwrap() error { return ErrPlanValidation }

// MissingRequiredParameterError is a step failure raised when a mandatory
// input has no connection value, literal or default.
type MissingRequiredParameterError struct {
	StepID    ID
	ParamName string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q on step %s", e.ParamName, e.StepID)
}

func (e *MissingRequiredParameterError) Unwrap() error { return ErrMissingRequiredParameter }

// KeywordExecutionError wraps an error returned (or panic raised) by a
// keyword handler, or a step that exceeded its timeout.
type KeywordExecutionError struct {
	Keyword string
	StepID  ID
	Timeout bool
	Err     error
}

func (e *KeywordExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("keyword %q on step %s timed out: %v", e.Keyword, e.StepID, e.Err)
	}
	return fmt.Sprintf("keyword %q failed on step %s: %v", e.Keyword, e.StepID, e.Err)
}

func (e *KeywordExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrKeywordExecution}
	}
	return []error{ErrKeywordExecution, e.Err}
}

// WiringError means a connection pointed at a step that never executed.
// Validation rules out forward connections, so this signals a validation gap
// and aborts the run.
type WiringError struct {
	ConnectionID ID
	FromStepID   ID
	ToStepID     ID
	Reason       string
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("connection %s (step %s -> step %s): %s",
		e.ConnectionID, e.FromStepID, e.ToStepID, e.Reason)
}

func (e *WiringError) Unwrap() error { return ErrWiring }

// InvalidChoiceError is a step failure raised when a resolved input is not
// one of the values the keyword accepts.
type InvalidChoiceError struct {
	StepID    ID
	ParamName string
	Value     string
	Choices   []string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("parameter %q on step %s: value %q not in [%s]",
		e.ParamName, e.StepID, e.Value, strings.Join(e.Choices, ", "))
}

func (e *InvalidChoiceError) Unwrap() error { return ErrInvalidChoice }
