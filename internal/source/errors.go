package source

import (
	"errors"
	"fmt"
)

// TransportError means the backend could not be reached or answered with a
// failure status and no structured message.
type TransportError struct {
	Op     string // source operation, e.g. "list"
	Status int    // HTTP status, 0 when no response
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: backend returned status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": transport failure"
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is a structured rejection from the backend. Message is
// shown to the user verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError means the record does not exist.
type NotFoundError struct {
	ID      int64
	Message string // backend message, if any
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("company %d not found: %s", e.ID, e.Message)
	}
	return fmt.Sprintf("company %d not found", e.ID)
}

// NotFound returns a *NotFoundError for id.
func NotFound(id int64) error {
	return &NotFoundError{ID: id}
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
