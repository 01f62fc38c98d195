package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped reports that the event consumer stopped reading.
	ErrStopped = errors.New("analysis: consumer stopped")
	// ErrRunnerUsed reports a second Run on the same Runner.
	ErrRunnerUsed = errors.New("analysis: runner already used")
	// ErrNoFiling marks a filing stage skipped because no filing text was supplied.
	ErrNoFiling = errors.New("no filing available")
	// ErrNoStream marks a TextGenerator that returned neither a stream nor an error.
	ErrNoStream = errors.New("generator returned no stream")
	// ErrNoRecord is returned by a ResultReader with nothing stored for a symbol.
	ErrNoRecord = errors.New("analysis: no record")
)

// StageError is the fault that ended a stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StorageError wraps a ResultStore failure.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("persist analysis: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
