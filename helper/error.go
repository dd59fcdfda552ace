package helper

import "fmt"

// Error wraps an underlying error with the operation it occurred on.
type Error struct {
	Operation string
	Err       error
}

// NewError creates a new wrapped error for the given operation.
func NewError(operation string, err error) error {
	return &Error{Operation: operation, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("error on %v: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}
