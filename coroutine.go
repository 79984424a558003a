package asyncrt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Yield returns control from a coroutine to whoever resumed it. The coroutine
// continues from the same point when its next step is scheduled.
type Yield func()

type coroStatus int

const (
	statusYielded coroStatus = iota
	statusSuspended
	statusDone
)

// CoroutineHandler is the runtime-facing capability of one coroutine. The
// awaiter machinery uses it to suspend the coroutine and to post the resume
// step to the processor the coroutine is bound to.
//
// A coroutine's body runs on a dedicated goroutine that parks between steps;
// each step is one task slice on a processor, so exactly one thread drives
// the coroutine at any instant. The goroutine starts parked: that is the
// implicit initial yield, letting the creator enqueue the coroutine before
// its entry body executes.
type CoroutineHandler struct {
	resume chan struct{}
	status chan coroStatus

	// stepMu serializes resume steps, so a resume posted by a completion
	// racing ahead of Suspend waits for the in-flight step to finish.
	stepMu sync.Mutex

	valid atomic.Bool

	// state pins the coroutine to the processor that first resumed it.
	stateMu sync.Mutex
	state   ExecutorState
	pinned  bool
}

func newCoroutineHandler(initial ExecutorState) *CoroutineHandler {
	h := &CoroutineHandler{
		resume: make(chan struct{}),
		status: make(chan coroStatus),
		state:  initial,
	}
	h.valid.Store(true)
	return h
}

// Valid reports whether the coroutine's entry has not yet returned.
func (h *CoroutineHandler) Valid() bool { return h.valid.Load() }

// yield parks the coroutine goroutine with the given status until the next
// resume step. Called from the coroutine goroutine only.
func (h *CoroutineHandler) yield(st coroStatus) {
	h.status <- st
	<-h.resume
}

// Suspend parks the coroutine until an external resume is posted, typically
// by a Result continuation registered through Await.
func (h *CoroutineHandler) Suspend() {
	h.yield(statusSuspended)
}

// step drives the coroutine through one slice: it unparks the goroutine and
// waits until the coroutine yields, suspends, or terminates. Resuming a
// terminated coroutine is a no-op.
func (h *CoroutineHandler) step() coroStatus {
	h.stepMu.Lock()
	defer h.stepMu.Unlock()

	if !h.valid.Load() {
		return statusDone
	}
	h.resume <- struct{}{}
	return <-h.status
}

// pinTo binds the coroutine to the processor driving its first step. The
// binding never changes afterwards: suspended coroutines are not migrated.
func (h *CoroutineHandler) pinTo(p *processor) {
	h.stateMu.Lock()
	if !h.pinned {
		h.pinned = true
		h.state.Executor = p.exec
		h.state.ProcessorHint = p.id
	}
	h.stateMu.Unlock()
}

func (h *CoroutineHandler) executorState() ExecutorState {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

// newStepTask builds the task that drives the coroutine's next slice on its
// bound processor, plus the step result completed when the slice ends.
func (h *CoroutineHandler) newStepTask() (*Task, *Result[Void]) {
	res := NewResult[Void]()
	t := newRunnableTask(func(ctx context.Context) {
		if p := currentProcessor(ctx); p != nil {
			h.pinTo(p)
		}
		h.step()
		_ = res.Complete(Void{})
	})
	t.state = h.executorState()
	t.strictPin = true
	return t, res
}

// postResume schedules the coroutine's next step after a suspension. It posts
// straight to the bound executor so suspended coroutines still unwind while
// the runtime is terminating.
func (h *CoroutineHandler) postResume() {
	t, _ := h.newStepTask()
	if e := t.state.Executor; e != nil {
		e.Post(t)
		return
	}
	_ = Default().Post(t)
}

// Coroutine is a cooperative routine with explicit yield. Its entry runs on a
// private goroutine, sliced into steps executed by processors; Result carries
// the entry's return value.
type Coroutine[R any] struct {
	h      *CoroutineHandler
	result *Result[R]
}

// MakeCoroutine creates a coroutine from fn. fn receives the coroutine's
// handler and a yield capability; captured state stands in for arguments.
// The entry body does not run until the first step is scheduled with Async.
// Placement options (WithExecutor, WithEntityTag, WithProcessor) steer the
// first step; afterwards the coroutine stays on the processor that first
// resumed it.
func MakeCoroutine[R any](fn func(h *CoroutineHandler, yield Yield) (R, error), opts ...TaskOption) *Coroutine[R] {
	seed := &Task{state: newExecutorState()}
	for _, opt := range opts {
		if opt != nil {
			opt(seed)
		}
	}

	c := &Coroutine[R]{
		h:      newCoroutineHandler(seed.state),
		result: NewResult[R](),
	}
	Default().coroutineCreated()

	go func() {
		h := c.h
		<-h.resume // implicit initial yield

		var (
			ret R
			err error
		)
		func() {
			defer func() {
				if ePanic := recover(); ePanic != nil {
					err = fmt.Errorf("%w: coroutine panicked: %v", ErrInternal, ePanic)
				}
			}()
			ret, err = fn(h, func() { h.yield(statusYielded) })
		}()

		h.valid.Store(false)
		_ = c.result.complete(ret, err)
		h.status <- statusDone
	}()

	return c
}

// Async schedules the coroutine's next step and returns a result completed
// when that step ends, i.e. when the coroutine yields, suspends, or
// terminates. Use Result for the entry's terminal value. Scheduling a step of
// a terminated coroutine fails with ErrInvalidCoroutine.
func (c *Coroutine[R]) Async() (*Result[Void], error) {
	rt := Default()
	if !c.h.Valid() {
		return nil, ErrInvalidCoroutine
	}
	t, res := c.h.newStepTask()
	rt.track(res)
	if err := rt.Post(t); err != nil {
		return nil, err
	}
	return res, nil
}

// Valid reports whether the coroutine's entry has not yet returned.
func (c *Coroutine[R]) Valid() bool { return c.h.Valid() }

// Result returns the coroutine's terminal result: the entry's return value,
// its error, or ErrCancelled when the runtime terminated underneath it.
func (c *Coroutine[R]) Result() *Result[R] { return c.result }

// Handler returns the coroutine's runtime-facing handler, passed to Await for
// suspending waits.
func (c *Coroutine[R]) Handler() *CoroutineHandler { return c.h }
