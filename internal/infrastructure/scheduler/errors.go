package scheduler

import "errors"

var (
	// ErrSchedulerAlreadyRunning is returned by Start on a running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned by Stop on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrSweepInProgress is returned when a sweep or tenant pass is already running,
	// in this process or, with a distributed lock, anywhere else
	ErrSweepInProgress = errors.New("reconciliation sweep already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTenantPanicked wraps a panic recovered from one tenant's pass
	ErrTenantPanicked = errors.New("tenant reconciliation panicked")
)
