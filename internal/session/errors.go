package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition rejects an operation that is out of order for the
	// current state. The session is left untouched.
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoUser            = errors.New("no authenticated user for submission")
	ErrSubmitInFlight    = errors.New("result submission already in progress")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// LoadError reports that questions or assessment metadata could not be fetched.
type LoadError struct {
	AssessmentID string
	Err          error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load assessment %s: %v", e.AssessmentID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmissionError reports that the result store rejected the write. The
// attempt stays in the submitting state and can be retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit result: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
