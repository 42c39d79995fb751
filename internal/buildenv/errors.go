package buildenv

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed = errors.New("docker connection failed")
	ErrImageNotFound    = errors.New("image not found")
	ErrImagePullFailed  = errors.New("image pull failed")
	ErrCommandFailed    = errors.New("build command failed")
	ErrTimeout          = errors.New("operation timed out")
)

// EnvError wraps build-environment errors with additional context.
type EnvError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, image)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *EnvError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EnvError) Unwrap() error {
	return e.Err
}

// NewEnvError creates a new EnvError.
func NewEnvError(op, entity, id, message string, err error) *EnvError {
	return &EnvError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
