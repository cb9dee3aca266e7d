package scheduler

import "errors"

var (
	// ErrInvalidJob is returned for malformed job declarations.
	ErrInvalidJob = errors.New("invalid job")

	// ErrDuplicateJob is returned when a job name is already scheduled.
	ErrDuplicateJob = errors.New("job already scheduled")

	// ErrNotSetUp is returned when jobs are added before setup.
	ErrNotSetUp = errors.New("scheduler not set up")
)
