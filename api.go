package asyncrt

import "github.com/ygrebnov/asyncrt/metrics"

// SetupRuntime initializes the default runtime. See Runtime.Setup.
func SetupRuntime(opts ...Option) error {
	return Default().Setup(opts...)
}

// Terminate tears down the default runtime. See Runtime.Terminate.
func Terminate() {
	Default().Terminate()
}

// Post submits a task to the default runtime. See Runtime.Post.
func Post(t *Task) error {
	return Default().Post(t)
}

// Async builds a task from fn (see NewTask for accepted signatures), submits
// it to the default runtime, and returns the result the task will complete.
// The result observes ErrCancelled if the runtime terminates first.
func Async[R any](fn interface{}, opts ...TaskOption) (*Result[R], error) {
	rt := Default()
	t, res, err := NewTask[R](fn, opts...)
	if err != nil {
		return nil, err
	}
	rt.track(res)
	if err := rt.Post(t); err != nil {
		_ = res.cancel()
		return nil, err
	}
	return res, nil
}

// AsyncIO submits fn to the I/O executor, so blocking work never occupies a
// processor thread. The completion is delivered as a Result transition;
// awaiting coroutines resume on their originating processor.
func AsyncIO[R any](fn interface{}, opts ...TaskOption) (*Result[R], error) {
	io := Default().IOExecutor()
	if io == nil {
		return nil, ErrNotInitialized
	}
	return Async[R](fn, append(opts, WithExecutor(io))...)
}

// GetWorkGroup resolves a work-group name on the default runtime.
func GetWorkGroup(name string) ObjectID {
	return Default().GetWorkGroup(name)
}

// AddEntityTag registers an entity with the default runtime. See
// Runtime.AddEntityTag.
func AddEntityTag(ptr any) EntityTag {
	return Default().AddEntityTag(ptr)
}

// DeleteEntityTag removes an entity binding from the default runtime.
func DeleteEntityTag(tag EntityTag) {
	Default().DeleteEntityTag(tag)
}

// MakeMetricsCounter builds a labeled counter from the default runtime's
// metrics provider.
func MakeMetricsCounter(name string, labels map[string]string) metrics.Counter {
	return Default().MakeMetricsCounter(name, labels)
}
