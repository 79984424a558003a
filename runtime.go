package asyncrt

import (
	"sync"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/ygrebnov/asyncrt/metrics"
	"github.com/ygrebnov/asyncrt/topology"
)

const ioExecutorName = "io"

// trackable is the runtime's view of a pending result: enough to cancel it at
// Terminate and to drop it from the registry once it completes on its own.
type trackable interface {
	Then(fn func()) bool
	cancel() error
}

// Runtime holds the executor table (one CPU executor per NUMA node plus one
// I/O executor), the work-group configuration, and entity-to-executor
// bindings. Most programs use the package-level default runtime through
// SetupRuntime and the free functions; an explicit Runtime value works the
// same way via its methods.
type Runtime struct {
	// lifecycleMu serializes Setup and Terminate against each other.
	lifecycleMu sync.Mutex

	mu         sync.RWMutex
	isSetup    bool
	cfg        RuntimeConfig
	logger     *zap.Logger
	provider   metrics.Provider
	mtr        *schedMetrics
	coroutines metrics.Counter

	profilerStart func()
	profilerStop  func()
	undoMaxProcs  func()

	executors  map[int]Executor
	cpuExecs   []*cpuExecutor
	main       Executor
	io         *ioExecutor
	workGroups []WorkGroupOption

	entitiesMu sync.Mutex
	entities   map[EntityTag]Executor
	nextTag    EntityTag

	trackedMu   sync.Mutex
	terminating bool
	tracked     map[uint64]trackable
	nextTrackID uint64
}

var defaultRuntime = &Runtime{}

// Default returns the process-wide default runtime used by the package-level
// free functions.
func Default() *Runtime { return defaultRuntime }

// NewRuntime returns an un-initialized runtime value for programs that prefer
// threading an explicit runtime over the process-wide default. Note that the
// generic free functions (Async, MakeCoroutine, MakeChannel) always address
// the default runtime.
func NewRuntime() *Runtime { return &Runtime{} }

// Setup initializes the runtime: it discovers the node topology (or builds
// synthetic nodes), creates one CPU executor per node and the I/O executor,
// registers every CPU processor thread with the I/O executor, and installs
// the work-group table. Setup on an already set up runtime is a no-op.
// Misconfiguration is reported before any executor is created.
func (rt *Runtime) Setup(opts ...Option) error {
	rt.lifecycleMu.Lock()
	defer rt.lifecycleMu.Unlock()

	rt.mu.RLock()
	alreadySetup := rt.isSetup
	rt.mu.RUnlock()
	if alreadySetup {
		return nil
	}

	co := newConfigOptions()
	for _, opt := range opts {
		if opt == nil {
			panic("nil runtime option")
		}
		opt(&co)
	}

	if err := validateRuntimeConfig(&co.cfg); err != nil {
		return err
	}
	groups, err := buildWorkGroups(co.cfg.WorkGroups)
	if err != nil {
		return err
	}

	var undoMaxProcs func()
	if !co.cfg.DisableMaxProcs {
		undo, err := maxprocs.Set(maxprocs.Logger(co.logger.Sugar().Debugf))
		if err != nil {
			co.logger.Warn("gomaxprocs alignment failed", zap.Error(err))
		}
		undoMaxProcs = undo
	}

	mtr := newSchedMetrics(co.metrics)

	var nodes []topology.Node
	if co.cfg.VirtualNumaNodesCount == 0 {
		nodes = topology.Nodes()
	} else {
		nodes = topology.VirtualNodes(co.cfg.VirtualNumaNodesCount)
	}

	executors := make(map[int]Executor, len(nodes)+1)
	cpuExecs := make([]*cpuExecutor, 0, len(nodes))
	for i, node := range nodes {
		e := newCPUExecutor(cpuExecutorName(i), node.CPUs, co.cfg.ProcessorsPerNode, groups, co.logger, mtr)
		executors[i] = e
		cpuExecs = append(cpuExecs, e)
	}

	io := newIOExecutor(ioExecutorName, co.cfg.IOWorkers, co.logger)
	for _, e := range cpuExecs {
		for _, p := range e.Processors() {
			io.ThreadRegistration(p.ThreadID())
		}
	}

	rt.mu.Lock()
	rt.cfg = co.cfg
	rt.logger = co.logger
	rt.provider = co.metrics
	rt.mtr = mtr
	rt.coroutines = co.metrics.Counter("asyncrt_coroutines_total")
	rt.profilerStart = co.profilerStart
	rt.profilerStop = co.profilerStop
	rt.undoMaxProcs = undoMaxProcs
	rt.executors = executors
	rt.cpuExecs = cpuExecs
	rt.main = cpuExecs[0]
	rt.io = io
	rt.workGroups = groups
	rt.isSetup = true
	rt.mu.Unlock()

	rt.entitiesMu.Lock()
	rt.entities = make(map[EntityTag]Executor)
	rt.entitiesMu.Unlock()

	rt.trackedMu.Lock()
	rt.terminating = false
	if rt.tracked == nil {
		rt.tracked = make(map[uint64]trackable)
	}
	rt.trackedMu.Unlock()

	if co.profilerStart != nil {
		co.profilerStart()
	}
	co.logger.Info("runtime set up",
		zap.Int("cpu_executors", len(cpuExecs)),
		zap.Int("work_groups", len(groups)))
	return nil
}

// Terminate reverses Setup: it cancels every tracked pending result (blocked
// waiters wake with ErrCancelled and suspended coroutines unwind), waits for
// accepted task slices to run, joins all executor threads, and destroys the
// executors. Terminate on a runtime that is not set up is a no-op.
func (rt *Runtime) Terminate() {
	rt.lifecycleMu.Lock()
	defer rt.lifecycleMu.Unlock()

	rt.mu.Lock()
	if !rt.isSetup {
		rt.mu.Unlock()
		return
	}
	rt.isSetup = false
	cpuExecs := rt.cpuExecs
	io := rt.io
	logger := rt.logger
	profilerStop := rt.profilerStop
	undoMaxProcs := rt.undoMaxProcs
	rt.mu.Unlock()

	if profilerStop != nil {
		profilerStop()
	}

	rt.trackedMu.Lock()
	rt.terminating = true
	tracked := rt.tracked
	rt.tracked = make(map[uint64]trackable)
	rt.trackedMu.Unlock()
	for _, r := range tracked {
		_ = r.cancel()
	}

	// Two drain passes: cancellations above may cascade (an I/O completion
	// posts a resume onto a CPU executor and vice versa); the second pass
	// settles cross-executor tails.
	for pass := 0; pass < 2; pass++ {
		io.drain()
		for _, e := range cpuExecs {
			e.drain()
		}
	}

	for _, e := range cpuExecs {
		e.shutdown()
	}
	io.shutdown()

	if undoMaxProcs != nil {
		undoMaxProcs()
	}

	rt.mu.Lock()
	rt.executors = nil
	rt.cpuExecs = nil
	rt.main = nil
	rt.io = nil
	rt.workGroups = nil
	rt.undoMaxProcs = nil
	rt.mu.Unlock()

	rt.entitiesMu.Lock()
	rt.entities = nil
	rt.entitiesMu.Unlock()

	// The cascade window is over: results created from here on belong to
	// runtime-independent use (plain channels) or to the next Setup.
	rt.trackedMu.Lock()
	rt.terminating = false
	rt.trackedMu.Unlock()

	logger.Info("runtime terminated")
}

// Post resolves the task's placement and submits it: an explicit executor
// wins, then the executor bound to the task's entity tag, then the freest CPU
// executor, then the main executor.
func (rt *Runtime) Post(t *Task) error {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if !rt.isSetup {
		return ErrNotInitialized
	}

	if e := t.state.Executor; e != nil {
		e.Post(t)
		return nil
	}

	var e Executor
	if tag := t.state.EntityTag; tag != InvalidObjectID {
		e = rt.fetchExecutor(tag)
	}
	if e == nil {
		e = rt.fetchFreeExecutor(CPUExecutorType)
	}
	if e == nil {
		e = rt.main
	}
	e.Post(t)
	return nil
}

// fetchExecutor resolves the executor bound to an entity tag.
func (rt *Runtime) fetchExecutor(tag EntityTag) Executor {
	rt.entitiesMu.Lock()
	defer rt.entitiesMu.Unlock()
	return rt.entities[tag]
}

// fetchFreeExecutor returns the executor of the given type with the fewest
// registered entities. Callers hold at least rt.mu.RLock.
func (rt *Runtime) fetchFreeExecutor(typ ExecutorType) Executor {
	if typ == IOExecutorType {
		return rt.io
	}
	var free Executor
	min := int64(-1)
	for _, e := range rt.cpuExecs {
		if n := e.entitiesCount(); min < 0 || n < min {
			min = n
			free = e
		}
	}
	return free
}

// AddEntityTag registers a user object with the least-loaded CPU executor and
// returns a stable tag that pins the entity's tasks there. The returned tag is
// runtime-generated rather than derived from the pointer, which keeps it
// stable under a moving garbage collector. It returns InvalidObjectID when the
// runtime is not set up.
func (rt *Runtime) AddEntityTag(ptr any) EntityTag {
	_ = ptr

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if !rt.isSetup {
		return InvalidObjectID
	}
	e := rt.fetchFreeExecutor(CPUExecutorType)
	if e == nil {
		return InvalidObjectID
	}

	rt.entitiesMu.Lock()
	defer rt.entitiesMu.Unlock()
	rt.nextTag++
	tag := rt.nextTag
	e.adjustEntities(1)
	rt.entities[tag] = e
	return tag
}

// DeleteEntityTag removes the binding created by AddEntityTag. Unknown tags
// are ignored.
func (rt *Runtime) DeleteEntityTag(tag EntityTag) {
	rt.entitiesMu.Lock()
	defer rt.entitiesMu.Unlock()
	if e, ok := rt.entities[tag]; ok {
		e.adjustEntities(-1)
		delete(rt.entities, tag)
	}
}

// GetWorkGroup returns the ObjectID of the named work group, or
// InvalidObjectID when no such group is configured.
func (rt *Runtime) GetWorkGroup(name string) ObjectID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for i, g := range rt.workGroups {
		if g.Name == name {
			return ObjectID(i)
		}
	}
	return InvalidObjectID
}

// IOExecutor returns the runtime's I/O executor, or nil before Setup.
func (rt *Runtime) IOExecutor() Executor {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if !rt.isSetup {
		return nil
	}
	return rt.io
}

// MainExecutor returns the runtime's main CPU executor, or nil before Setup.
func (rt *Runtime) MainExecutor() Executor {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.main
}

// MakeMetricsCounter builds a labeled counter from the runtime's metrics
// provider; before Setup it returns a discarding counter.
func (rt *Runtime) MakeMetricsCounter(name string, labels map[string]string) metrics.Counter {
	rt.mu.RLock()
	provider := rt.provider
	rt.mu.RUnlock()
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	return provider.Counter(name, metrics.WithLabels(labels))
}

func (rt *Runtime) coroutineCreated() {
	rt.mu.RLock()
	c := rt.coroutines
	rt.mu.RUnlock()
	if c != nil {
		c.Add(1)
	}
}

// track registers a pending result for cancellation at Terminate and
// deregisters it once it completes on its own. Results created while the
// runtime is terminating are cancelled immediately so coroutines cascading
// through shutdown keep unwinding.
func (rt *Runtime) track(r trackable) {
	rt.trackedMu.Lock()
	if rt.terminating {
		rt.trackedMu.Unlock()
		_ = r.cancel()
		return
	}
	if rt.tracked == nil {
		rt.tracked = make(map[uint64]trackable)
	}
	rt.nextTrackID++
	id := rt.nextTrackID
	rt.tracked[id] = r
	rt.trackedMu.Unlock()

	if !r.Then(func() { rt.untrack(id) }) {
		rt.untrack(id)
	}
}

func (rt *Runtime) untrack(id uint64) {
	rt.trackedMu.Lock()
	delete(rt.tracked, id)
	rt.trackedMu.Unlock()
}
