// Package asyncrt is an asynchronous runtime: it multiplexes many logically
// independent tasks onto a small pool of OS threads and provides cooperative
// suspension points, so tasks can wait on I/O or on messages from other tasks
// without holding a thread while blocked.
//
// Concurrency is expressed as coroutines (cooperative routines with explicit
// yield) and tasks (one-shot work units producing a Result). The runtime
// schedules both across NUMA-aware executor groups, routes I/O work to a
// dedicated I/O executor, balances load through per-processor work-stealing
// queues, and offers typed channels for inter-coroutine messaging.
//
// Lifecycle
//
//	err := asyncrt.SetupRuntime()
//	defer asyncrt.Terminate()
//
// SetupRuntime creates one CPU executor per NUMA node (or per synthetic node,
// see WithVirtualNumaNodes) plus one I/O executor, and registers every CPU
// processor thread with the I/O executor.
//
// Defaults
// Unless overridden, a newly set up runtime uses:
//   - real NUMA topology (VirtualNumaNodesCount: 0)
//   - the reserved "main" work group only (weight 1.0, medium priority)
//   - a no-op logger and a no-op metrics provider
//   - GOMAXPROCS aligned with the CPU quota via automaxprocs
//
// Coroutines
// A coroutine begins with an implicit initial yield: its entry body does not
// run until the first resume step is scheduled, so the creator can enqueue it
// before the first step. Once first resumed, a coroutine is pinned to that
// processor; Await suspends it and resumes it there when the awaited Result
// completes.
//
// Channels
// A Channel fans every sent value out to all registered watchers, FIFO per
// watcher. A watcher's AsyncReceive returns a Result completed by the next
// value; dropping a watcher cancels its pending receive.
//
// The runtime does not preempt running coroutines and does not migrate a
// suspended coroutine between processors. Terminate waits for in-flight task
// slices; pending Results observe ErrCancelled.
package asyncrt
