package asyncrt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExecutorType distinguishes CPU executors from the I/O executor.
type ExecutorType int

const (
	CPUExecutorType ExecutorType = iota
	IOExecutorType
)

// Executor is a named group of workers sharing one scheduler. CPU executors
// map to NUMA nodes; the I/O executor serves blocking submissions. The
// interface is implemented only inside the package; external code receives
// executors from the runtime and passes them back via WithExecutor.
type Executor interface {
	Name() string
	Type() ExecutorType

	// Post submits a task for execution on this executor.
	Post(t *Task)

	entitiesCount() int64
	adjustEntities(delta int64)
	drain()
	shutdown()
}

// cpuExecutor drives one NUMA node: a scheduler plus one processor per CPU of
// the node's set (or a fixed count when configured).
type cpuExecutor struct {
	name     string
	sched    *scheduler
	procs    []*processor
	cancel   context.CancelFunc
	group    *errgroup.Group
	pending  sync.WaitGroup
	entities atomic.Int64
	log      *zap.Logger
}

// newCPUExecutor constructs and starts the executor: processor threads are
// running, pinned, and registered before it returns.
func newCPUExecutor(
	name string,
	cpus []int,
	perNode int,
	groups []WorkGroupOption,
	log *zap.Logger,
	mtr *schedMetrics,
) *cpuExecutor {
	e := &cpuExecutor{
		name: name,
		log:  log,
	}
	e.sched = newScheduler(groups, log, mtr)

	count := len(cpus)
	if perNode > 0 {
		count = perNode
	}
	if count == 0 {
		count = 1
	}

	e.procs = make([]*processor, count)
	for i := range e.procs {
		var set []int
		if len(cpus) > 0 {
			set = []int{cpus[i%len(cpus)]}
		}
		e.procs[i] = newProcessor(i, e, set)
	}
	e.sched.setProcessors(e.procs)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.group, ctx = errgroup.WithContext(ctx)

	var ready sync.WaitGroup
	ready.Add(len(e.procs))
	for _, p := range e.procs {
		p := p
		e.group.Go(func() error { return p.run(ctx, &ready) })
	}
	e.group.Go(func() error { return e.sched.loop(ctx) })
	ready.Wait()

	log.Debug("executor started",
		zap.String("executor", name), zap.Int("processors", len(e.procs)))
	return e
}

func (e *cpuExecutor) Name() string       { return e.name }
func (e *cpuExecutor) Type() ExecutorType { return CPUExecutorType }

// Post submits a task. Every accepted task is accounted in pending until its
// slice has run, which is what drain waits on at Terminate.
func (e *cpuExecutor) Post(t *Task) {
	e.pending.Add(1)
	if !e.sched.post(t) {
		// Delayed task rejected mid-drain; its result stays cancelled.
		e.pending.Done()
	}
}

// Processors exposes the executor's processors for I/O completion-queue
// registration.
func (e *cpuExecutor) Processors() []*processor { return e.procs }

func (e *cpuExecutor) entitiesCount() int64       { return e.entities.Load() }
func (e *cpuExecutor) adjustEntities(delta int64) { e.entities.Add(delta) }

// drain waits until every accepted task has run. Delayed tasks not yet due
// are dropped first; their results were cancelled by the runtime.
func (e *cpuExecutor) drain() {
	e.sched.draining.Store(true)
	for range e.sched.cancelDelayed() {
		e.pending.Done()
	}
	e.pending.Wait()
}

// shutdown stops the processor threads and the scheduler helper and joins
// them. Callers drain first.
func (e *cpuExecutor) shutdown() {
	e.cancel()
	e.sched.signalAll()
	if err := e.group.Wait(); err != nil {
		e.log.Warn("executor stopped with error",
			zap.String("executor", e.name), zap.Error(err))
	}
	e.log.Debug("executor stopped", zap.String("executor", e.name))
}

func cpuExecutorName(node int) string {
	return fmt.Sprintf("CPUExecutor_%d", node)
}
