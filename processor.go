package asyncrt

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ygrebnov/asyncrt/topology"
)

// processor is one OS thread of a CPU executor, bound best-effort to one CPU.
// It owns a work-stealing queue and a run loop that prefers local work, then
// the scheduler's overflow and peers' queues, and parks when nothing is ready.
type processor struct {
	id    int
	exec  *cpuExecutor
	sched *scheduler
	cpus  []int
	queue wsQueue

	// pinned holds the strictly pinned tasks of this processor, i.e. coroutine
	// resume steps. It is private to the processor: never stolen, never spilled, so
	// a suspended coroutine always resumes where it first ran.
	pinned taskFIFO

	// notify holds at most one pending wakeup; senders never block.
	notify chan struct{}

	tid atomic.Int64
	log *zap.Logger
}

// taskFIFO is the unbounded private queue of processor-pinned tasks.
type taskFIFO struct {
	mu    sync.Mutex
	items []*Task
}

func (q *taskFIFO) push(t *Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

func (q *taskFIFO) pop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

func newProcessor(id int, exec *cpuExecutor, cpus []int) *processor {
	return &processor{
		id:     id,
		exec:   exec,
		sched:  exec.sched,
		cpus:   cpus,
		notify: make(chan struct{}, 1),
		log:    exec.log,
	}
}

// signal wakes the processor if it is parked. Lossless for parking purposes:
// the buffered slot keeps one wakeup pending across the park decision.
func (p *processor) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// ThreadID returns the OS thread id backing the processor, used by the I/O
// executor to register per-processor completion delivery.
func (p *processor) ThreadID() int {
	return int(p.tid.Load())
}

// ID returns the processor's stable identifier within its executor.
func (p *processor) ID() int { return p.id }

// run is the processor loop. ready is signalled once the OS thread is locked,
// pinned, and its thread id published, so Setup can complete registration
// before returning.
func (p *processor) run(ctx context.Context, ready *sync.WaitGroup) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := topology.PinThread(p.cpus); err != nil {
		p.log.Debug("cpu affinity not applied",
			zap.Int("processor", p.id), zap.Ints("cpus", p.cpus), zap.Error(err))
	}
	p.tid.Store(int64(topology.ThreadID()))
	ready.Done()

	pctx := context.WithValue(ctx, processorCtxKey{}, p)

	for {
		t := p.pinned.pop()
		if t == nil {
			t = p.queue.pop()
		}
		if t == nil {
			t = p.sched.fetch(p.id)
		}
		if t == nil {
			p.sched.park(p)
			select {
			case <-ctx.Done():
				p.sched.unpark(p)
				return nil
			case <-p.notify:
			}
			p.sched.unpark(p)
			continue
		}
		p.execute(pctx, t)
	}
}

// execute runs one task slice. Tasks complete their own results and recover
// their own panics; the recover here is a backstop for runtime plumbing tasks.
func (p *processor) execute(ctx context.Context, t *Task) {
	start := time.Now()
	defer func() {
		if ePanic := recover(); ePanic != nil {
			p.log.Error("task escaped with panic",
				zap.Int("processor", p.id), zap.Any("panic", ePanic))
		}
		p.sched.mtr.runSeconds.Record(time.Since(start).Seconds())
		p.exec.pending.Done()
	}()

	t.run(ctx)
}

type processorCtxKey struct{}

// currentProcessor returns the processor executing the current task, or nil
// when the caller does not run on a CPU executor.
func currentProcessor(ctx context.Context) *processor {
	p, _ := ctx.Value(processorCtxKey{}).(*processor)
	return p
}
