package journal

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("build not found")
	ErrConnectionFailed = errors.New("journal connection failed")
	ErrMigrationFailed  = errors.New("journal migration failed")
)

// StoreError wraps journal errors with the failing operation.
type StoreError struct {
	Op      string
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
