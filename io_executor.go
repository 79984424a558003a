package asyncrt

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ioTasksBufferSize = 1024

// ioExecutor serves blocking submissions on a small worker pool so processor
// threads never wait on I/O. CPU processor threads are recorded with
// ThreadRegistration; submissions themselves carry no thread tag. Completions
// are delivered as Result transitions, and awaiter continuations carry the
// resume back to the originating processor.
type ioExecutor struct {
	name     string
	tasks    chan *Task
	cancel   context.CancelFunc
	group    *errgroup.Group
	pending  sync.WaitGroup
	entities atomic.Int64
	log      *zap.Logger

	mu      sync.Mutex
	threads map[int]struct{}
}

func newIOExecutor(name string, workers int, log *zap.Logger) *ioExecutor {
	if workers <= 0 {
		workers = 1
	}
	e := &ioExecutor{
		name:    name,
		tasks:   make(chan *Task, ioTasksBufferSize),
		log:     log,
		threads: make(map[int]struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		e.group.Go(func() error { return e.worker(ctx) })
	}
	return e
}

func (e *ioExecutor) Name() string       { return e.name }
func (e *ioExecutor) Type() ExecutorType { return IOExecutorType }

// Post submits an I/O task. If the submission buffer is full, the send is
// completed from a detached goroutine so the posting processor never blocks.
func (e *ioExecutor) Post(t *Task) {
	e.pending.Add(1)
	select {
	case e.tasks <- t:
	default:
		go func() { e.tasks <- t }()
	}
}

// ThreadRegistration records a CPU processor thread as a completion
// destination. Every CPU processor is registered here at Setup.
func (e *ioExecutor) ThreadRegistration(tid int) {
	e.mu.Lock()
	e.threads[tid] = struct{}{}
	e.mu.Unlock()
}

// RegisteredThreads returns the number of processor threads registered for
// completion delivery.
func (e *ioExecutor) RegisteredThreads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.threads)
}

func (e *ioExecutor) entitiesCount() int64       { return e.entities.Load() }
func (e *ioExecutor) adjustEntities(delta int64) { e.entities.Add(delta) }

func (e *ioExecutor) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-e.tasks:
			e.execute(ctx, t)
		}
	}
}

func (e *ioExecutor) execute(ctx context.Context, t *Task) {
	defer func() {
		if ePanic := recover(); ePanic != nil {
			e.log.Error("io task escaped with panic", zap.Any("panic", ePanic))
		}
		e.pending.Done()
	}()

	t.run(ctx)
}

func (e *ioExecutor) drain() {
	e.pending.Wait()
}

func (e *ioExecutor) shutdown() {
	e.cancel()
	if err := e.group.Wait(); err != nil {
		e.log.Warn("io executor stopped with error", zap.Error(err))
	}
	e.mu.Lock()
	e.threads = make(map[int]struct{})
	e.mu.Unlock()
	e.log.Debug("executor stopped", zap.String("executor", e.name))
}
