package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned once the pipeline has been cancelled.
	ErrCancelled = errors.New("pipeline cancelled")
	// ErrDestroyed is returned by any call on a destroyed pipeline.
	ErrDestroyed = errors.New("pipeline destroyed")
	// ErrFatal marks a step error that aborts the whole batch instead of
	// the current document only.
	ErrFatal = errors.New("fatal step error")
)

// Fatal wraps err so that it aborts the batch.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// StepError is an error returned by a step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// DocumentFailure records a document that could not be processed.
type DocumentFailure struct {
	URI string
	Err error
}

func (f *DocumentFailure) Error() string { return fmt.Sprintf("document %s: %v", f.URI, f.Err) }

func (f *DocumentFailure) Unwrap() error { return f.Err }
