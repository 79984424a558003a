package asyncrt

import "errors"

const Namespace = "asyncrt"

var (
	// ErrNotInitialized is returned by runtime operations invoked before Setup.
	ErrNotInitialized = errors.New(Namespace + ": runtime is not set up")

	// ErrAlreadyCompleted is returned by Complete/Fail on a result that has
	// already reached a terminal state.
	ErrAlreadyCompleted = errors.New(Namespace + ": result already completed")

	// ErrCancelled is observed by waiters of results abandoned at Terminate and
	// by pending receives of a dropped channel watcher.
	ErrCancelled = errors.New(Namespace + ": cancelled")

	// ErrQueueFull reports a work-stealing queue overflow. It is handled
	// internally by the scheduler overflow run queue and never surfaces to callers.
	ErrQueueFull = errors.New(Namespace + ": work-stealing queue is full")

	// ErrWouldBlock is returned by Send on a bounded channel when a watcher
	// queue is at capacity.
	ErrWouldBlock = errors.New(Namespace + ": channel watcher queue is full")

	ErrInvalidConfig    = errors.New(Namespace + ": invalid configuration")
	ErrWorkGroupExists  = errors.New(Namespace + ": work group already exists")
	ErrInvalidTaskType  = errors.New(Namespace + ": invalid task type")
	ErrInvalidCoroutine = errors.New(Namespace + ": coroutine is not valid")

	// ErrInternal wraps failures escaping from user callables.
	ErrInternal = errors.New(Namespace + ": internal error")
)
