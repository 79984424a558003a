package asyncrt

import (
	"context"
	"fmt"
	"time"
)

// ObjectID identifies runtime-managed objects such as work groups.
type ObjectID uint64

// InvalidObjectID is returned by lookups that find nothing.
const InvalidObjectID = ^ObjectID(0)

// EntityTag is a stable handle pinning related tasks to the same executor.
type EntityTag = ObjectID

// Void is the value type of results that carry no payload, such as coroutine
// step results.
type Void = struct{}

// ExecutorState is the execution-placement hint carried by a task. Fields are
// interpreted in priority order when posting: an explicit executor wins, then
// an entity tag, then free routing. ProcessorHint additionally targets one
// processor of the resolved executor; the awaiter uses it to resume a
// coroutine where it first ran, and only those resume steps are held to the
// processor strictly.
type ExecutorState struct {
	Executor      Executor
	EntityTag     EntityTag
	ProcessorHint int
}

func newExecutorState() ExecutorState {
	return ExecutorState{EntityTag: InvalidObjectID, ProcessorHint: -1}
}

// Task is the smallest schedulable unit: a callable plus the result slot it
// completes, a placement hint, and an optional earliest execution time.
// A task runs at most once and completes its result exactly once.
type Task struct {
	fn    func(ctx context.Context)
	state ExecutorState
	group ObjectID
	at    time.Time // earliest execution time; zero means immediately

	// strictPin routes the task to the hinted processor's private queue,
	// exempt from stealing and overflow. Set only for coroutine resume steps;
	// WithProcessor remains a stealable placement preference.
	strictPin bool

	heapIndex int
}

// State returns the task's placement hint.
func (t *Task) State() ExecutorState { return t.state }

// WorkGroup returns the work group the task is accounted to.
func (t *Task) WorkGroup() ObjectID { return t.group }

// StartAt returns the task's earliest execution time. The deadline is an
// absolute reading of the monotonic clock; zero means the task is due
// immediately.
func (t *Task) StartAt() time.Time { return t.at }

func (t *Task) run(ctx context.Context) { t.fn(ctx) }

func (t *Task) delayed(now time.Time) bool {
	return !t.at.IsZero() && t.at.After(now)
}

// TaskOption configures placement and timing of a task.
type TaskOption func(*Task)

// WithExecutor posts the task to the given executor, bypassing routing.
func WithExecutor(e Executor) TaskOption {
	return func(t *Task) { t.state.Executor = e }
}

// WithEntityTag routes the task to the executor bound to tag.
func WithEntityTag(tag EntityTag) TaskOption {
	return func(t *Task) { t.state.EntityTag = tag }
}

// WithProcessor queues the task on one processor of the resolved executor.
// It is a placement preference: idle peers may still steal the task.
func WithProcessor(id int) TaskOption {
	return func(t *Task) { t.state.ProcessorHint = id }
}

// WithWorkGroup accounts the task to the given work group.
func WithWorkGroup(id ObjectID) TaskOption {
	return func(t *Task) { t.group = id }
}

// WithDelay holds the task in the delayed queue for at least d.
func WithDelay(d time.Duration) TaskOption {
	return func(t *Task) { t.at = time.Now().Add(d) }
}

// WithStartAt holds the task in the delayed queue until the given time.
func WithStartAt(at time.Time) TaskOption {
	return func(t *Task) { t.at = at }
}

// NewTask builds a task from fn and returns it together with the result the
// task will complete. fn must be a function with one of the following
// signatures:
//
// * func(context.Context) (R, error),
//
// * func(context.Context) R,
//
// * func(context.Context) error.
//
// A panic escaping fn fails the result with an error wrapping ErrInternal.
func NewTask[R any](fn interface{}, opts ...TaskOption) (*Task, *Result[R], error) {
	var call func(ctx context.Context) (R, error)

	switch typed := fn.(type) {
	case func(context.Context) (R, error):
		call = typed

	case func(context.Context) R:
		call = func(ctx context.Context) (R, error) { return typed(ctx), nil }

	case func(context.Context) error:
		call = func(ctx context.Context) (R, error) {
			var zero R
			return zero, typed(ctx)
		}

	default:
		return nil, nil, ErrInvalidTaskType
	}

	res := NewResult[R]()
	t := &Task{state: newExecutorState()}
	t.fn = func(ctx context.Context) {
		var (
			ret R
			err error
		)

		func() {
			defer func() {
				if ePanic := recover(); ePanic != nil {
					err = fmt.Errorf("%w: task execution panicked: %v", ErrInternal, ePanic)
				}
			}()

			ret, err = call(ctx)
		}()

		// The result may already be cancelled by Terminate; that completion wins.
		_ = res.complete(ret, err)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, res, nil
}

// newRunnableTask wraps a bare runnable into a task. Used internally for
// coroutine resume steps.
func newRunnableTask(fn func(ctx context.Context)) *Task {
	return &Task{fn: fn, state: newExecutorState()}
}
