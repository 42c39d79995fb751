package builder

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrMissingHandler         = errors.New("handler file not found")
	ErrEnvironmentUnavailable = errors.New("build environment unavailable")
	ErrDependencyInstall      = errors.New("dependency install failed")
	ErrStageCopy              = errors.New("handler staging failed")
	ErrPackaging              = errors.New("packaging failed")
	ErrVerificationFailed     = errors.New("archive verification failed")
)

// StepError wraps pipeline failures with the step that failed and the
// path it was working on.
type StepError struct {
	Step    Step
	Path    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Step, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a new StepError.
func NewStepError(step Step, path, message string, err error) *StepError {
	return &StepError{
		Step:    step,
		Path:    path,
		Message: message,
		Err:     err,
	}
}
