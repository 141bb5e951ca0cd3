package jobfile

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCommand indicates no command was given to wrap
	ErrMissingCommand = errors.New("no command given")

	// ErrInvalidProcessCount indicates a process count below 1
	ErrInvalidProcessCount = errors.New("process count must be at least 1")

	// ErrInvalidCommand indicates a command string that could not be tokenized
	ErrInvalidCommand = errors.New("invalid command string")

	// ErrInvalidFlag indicates a known flag with a bad or missing value
	ErrInvalidFlag = errors.New("invalid flag")
)

// ScriptCreationError represents an error creating a job file
type ScriptCreationError struct {
	JobName string // Job name
	Path    string // Job file path
	Err     error  // Underlying error
}

func (e *ScriptCreationError) Error() string {
	return fmt.Sprintf("failed to create job file for job %q at %s: %v",
		e.JobName, e.Path, e.Err)
}

func (e *ScriptCreationError) Unwrap() error {
	return e.Err
}

// NewScriptCreationError creates a new ScriptCreationError
func NewScriptCreationError(jobName string, path string, err error) *ScriptCreationError {
	return &ScriptCreationError{
		JobName: jobName,
		Path:    path,
		Err:     err,
	}
}

// IsScriptCreationError checks if an error is a ScriptCreationError
func IsScriptCreationError(err error) bool {
	var se *ScriptCreationError
	return errors.As(err, &se)
}

// IsUsageError reports whether err was caused by a malformed invocation.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrMissingCommand) ||
		errors.Is(err, ErrInvalidProcessCount) ||
		errors.Is(err, ErrInvalidCommand) ||
		errors.Is(err, ErrInvalidFlag)
}
