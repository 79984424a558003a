package asyncrt

import "sync"

// Channel carries values of one type from any number of senders to any number
// of watchers. Every value sent is fanned out to each watcher registered at
// send time, FIFO per watcher and in one total order across watchers. The
// receive side integrates with Await through AsyncReceive.
//
// Watcher queues are unbounded by default. A bounded channel (MakeChannelCap)
// fails Send with ErrWouldBlock when any watcher queue is at capacity; it
// never blocks the sender and never drops silently.
type Channel[T any] struct {
	mu       sync.Mutex
	rt       *Runtime
	watchers []*Watcher[T]
	def      *Watcher[T]
	capacity int
}

// MakeChannel creates an unbounded channel bound to the default runtime.
func MakeChannel[T any]() *Channel[T] {
	return &Channel[T]{rt: Default()}
}

// MakeChannelCap creates a channel whose watcher queues hold at most capacity
// values; Send fails with ErrWouldBlock instead of growing past it.
func MakeChannelCap[T any](capacity int) *Channel[T] {
	return &Channel[T]{rt: Default(), capacity: capacity}
}

// Watch registers a new watcher. The watcher observes values sent after this
// call only.
func (c *Channel[T]) Watch() *Watcher[T] {
	w := &Watcher[T]{c: c}
	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	c.mu.Unlock()
	return w
}

// Send delivers v to every live watcher: it completes a watcher's pending
// receive or appends to its queue. With zero watchers the value is discarded
// without blocking.
func (c *Channel[T]) Send(v T) error {
	c.mu.Lock()

	if c.capacity > 0 {
		for _, w := range c.watchers {
			if w.pending == nil && len(w.queue) >= c.capacity {
				c.mu.Unlock()
				return ErrWouldBlock
			}
		}
	}

	var completions []*Result[T]
	for _, w := range c.watchers {
		if w.pending != nil {
			completions = append(completions, w.pending)
			w.pending = nil
			continue
		}
		w.queue = append(w.queue, v)
	}
	c.mu.Unlock()

	// Completions run outside the channel lock: continuations post resume
	// tasks and must not nest under it.
	for _, r := range completions {
		_ = r.Complete(v)
	}
	return nil
}

// Watchers returns the number of live watchers.
func (c *Channel[T]) Watchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// defaultWatcher lazily registers the watcher backing the free AsyncReceive.
func (c *Channel[T]) defaultWatcher() *Watcher[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.def == nil {
		w := &Watcher[T]{c: c}
		c.watchers = append(c.watchers, w)
		c.def = w
	}
	return c.def
}

// AsyncReceive receives the next value of the channel's default watcher.
// Coroutines combine it with Await:
//
//	v, err := asyncrt.Await(asyncrt.AsyncReceive(ch), handler)
func AsyncReceive[T any](c *Channel[T]) *Result[T] {
	return c.defaultWatcher().AsyncReceive()
}

// Watcher is one subscriber's FIFO view onto a channel.
type Watcher[T any] struct {
	c       *Channel[T]
	queue   []T
	pending *Result[T]
	closed  bool
}

// AsyncReceive returns a result completed with the watcher's next value. Each
// successful receive yields exactly one value. While a receive is
// outstanding, repeated calls return the same pending result. On a closed
// watcher the result fails with ErrCancelled.
func (w *Watcher[T]) AsyncReceive() *Result[T] {
	c := w.c
	c.mu.Lock()

	if w.closed {
		c.mu.Unlock()
		var zero T
		return completedResult(zero, ErrCancelled)
	}

	if len(w.queue) > 0 {
		v := w.queue[0]
		w.queue = w.queue[1:]
		c.mu.Unlock()
		return completedResult(v, nil)
	}

	if w.pending != nil {
		r := w.pending
		c.mu.Unlock()
		return r
	}

	r := NewResult[T]()
	w.pending = r
	c.mu.Unlock()

	if c.rt != nil {
		c.rt.track(r)
	}
	return r
}

// Close drops the watcher from the channel. An outstanding AsyncReceive
// completes with ErrCancelled; queued values are discarded.
func (w *Watcher[T]) Close() {
	c := w.c
	c.mu.Lock()
	if w.closed {
		c.mu.Unlock()
		return
	}
	w.closed = true
	for i, ww := range c.watchers {
		if ww == w {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
	if c.def == w {
		c.def = nil
	}
	pending := w.pending
	w.pending = nil
	w.queue = nil
	c.mu.Unlock()

	if pending != nil {
		_ = pending.Fail(ErrCancelled)
	}
}
