package kernel

import "github.com/pkg/errors"

var (
	// ErrMutexNotOwner is returned when a task releases a mutex it does not hold.
	ErrMutexNotOwner = errors.New("kernel: mutex not held by caller")
	// ErrAcquireTimeout is returned when a bounded mutex wait elapses.
	ErrAcquireTimeout = errors.New("kernel: mutex acquire timed out")
	// ErrTaskCreationFailed is returned when a task cannot be registered.
	ErrTaskCreationFailed = errors.New("kernel: task creation failed")
	// ErrMutexCreationFailed is returned when a mutex cannot be allocated.
	ErrMutexCreationFailed = errors.New("kernel: mutex creation failed")

	ErrSchedulerStarted  = errors.New("kernel: scheduler already started")
	ErrNotStarted        = errors.New("kernel: scheduler not started")
	ErrNoSuchMutex       = errors.New("kernel: no such mutex")
	ErrInvalidPriority   = errors.New("kernel: invalid priority")
	ErrInvalidPeriod     = errors.New("kernel: zero period")
	ErrRecursiveAcquire  = errors.New("kernel: mutex already held by caller")
	ErrSleepWhileHolding = errors.New("kernel: sleep while holding a mutex")
	ErrTaskSuspended     = errors.New("kernel: task already suspended in this step")
	ErrKernelPanic       = errors.New("kernel: task panicked")
	ErrTickSourceClosed  = errors.New("kernel: tick source closed")
)
