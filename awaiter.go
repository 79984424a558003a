package asyncrt

// Await blocks until r completes and returns its value or error.
//
// Called with a coroutine handler — Await(r, handler) from inside a coroutine
// body — it suspends the coroutine instead of holding the processor thread: a
// continuation is registered on r that posts the resume step to the
// coroutine's bound processor, and the coroutine parks until that step runs.
// Registration is atomic with completion, so the continuation cannot be lost;
// when r is already terminal the coroutine does not suspend at all.
//
// Called without a handler, Await is a plain blocking wait for non-coroutine
// callers.
func Await[T any](r *Result[T], handler ...*CoroutineHandler) (T, error) {
	var h *CoroutineHandler
	if len(handler) > 0 {
		h = handler[0]
	}

	if h == nil {
		r.Wait()
		return r.Get()
	}

	if r.Then(func() { h.postResume() }) {
		// Park until the completion's resume step drives us again.
		h.Suspend()
	}
	return r.Get()
}
