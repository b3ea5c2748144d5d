package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobAlreadyQueued is returned when a job of the same type is pending or running
	ErrJobAlreadyQueued = errors.New("job of this type is already queued")

	// ErrUnknownJobType is returned by executors for job types they do not handle
	ErrUnknownJobType = errors.New("unknown job type")
)
