package launcher

import "fmt"

// Launcher-side failures exit with codes distinct from anything the trainer
// would produce on purpose.
const (
	ExitCodeConfiguration = 2
	ExitCodeStaging       = 3
)

// ConfigurationError is a missing or invalid flag or flag combination.
// Always fatal, always detected before any trainer process starts.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StagingError is a failure to copy the dataset to local storage: an
// unreadable source, an unwritable destination, or a failed copy.
// Always fatal; the trainer is never dispatched against partial data.
type StagingError struct {
	Err error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging error: %v", e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// TrainerExecutionError is a non-zero exit from the trainer process. The
// launcher does not interpret it and does not retry; the exit status is
// passed through unchanged.
type TrainerExecutionError struct {
	ExitCode int
}

func (e *TrainerExecutionError) Error() string {
	return fmt.Sprintf("trainer exited with status %d", e.ExitCode)
}
