package asyncrt

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ygrebnov/asyncrt/metrics"
)

// schedMetrics groups the instruments shared by all executors of one runtime.
type schedMetrics struct {
	posted       metrics.Counter
	stolen       metrics.Counter
	overflowed   metrics.Counter
	delayedDepth metrics.UpDownCounter
	runSeconds   metrics.Histogram
}

func newSchedMetrics(p metrics.Provider) *schedMetrics {
	return &schedMetrics{
		posted:       p.Counter("asyncrt_tasks_posted_total"),
		stolen:       p.Counter("asyncrt_tasks_stolen_total"),
		overflowed:   p.Counter("asyncrt_tasks_overflowed_total"),
		delayedDepth: p.UpDownCounter("asyncrt_delayed_tasks"),
		runSeconds:   p.Histogram("asyncrt_task_run_seconds", metrics.WithUnit("seconds")),
	}
}

// scheduler owns the processors of one executor: it routes posted tasks,
// holds the delayed-task heap driven by a helper goroutine, maintains the
// per-group overflow run queues, and arbitrates stealing.
type scheduler struct {
	log   *zap.Logger
	mtr   *schedMetrics
	procs []*processor

	notifyInc atomic.Uint64

	// Overflow run queues, one FIFO per work group, drained by processors in
	// weighted round-robin order when their local queues are empty.
	runMu    sync.Mutex
	overflow [][]*Task
	credits  []int
	rrGroup  int
	rrLeft   int

	delayedMu sync.Mutex
	delayed   taskHeap
	wake      chan struct{}

	// draining rejects new delayed tasks during executor drain, so shutdown
	// cannot be held hostage by deadlines that never come due.
	draining atomic.Bool

	// parked tracks processors waiting for work, so a post that leaves extra
	// work behind can wake a peer to steal it.
	parkedMu sync.Mutex
	parked   []*processor
}

func newScheduler(groups []WorkGroupOption, log *zap.Logger, mtr *schedMetrics) *scheduler {
	s := &scheduler{
		log:      log,
		mtr:      mtr,
		overflow: make([][]*Task, len(groups)),
		credits:  make([]int, len(groups)),
		wake:     make(chan struct{}, 1),
	}
	for i, g := range groups {
		s.credits[i] = groupCredits(g)
	}
	s.rrLeft = s.credits[0]
	return s
}

func (s *scheduler) setProcessors(procs []*processor) { s.procs = procs }

// post accepts a task: future-dated tasks go to the delayed heap, everything
// else is routed to a processor immediately. It reports false when a delayed
// task is rejected because the executor is draining.
func (s *scheduler) post(t *Task) bool {
	s.mtr.posted.Add(1)
	if t.delayed(time.Now()) {
		if s.draining.Load() {
			return false
		}
		s.delayedMu.Lock()
		heap.Push(&s.delayed, t)
		s.delayedMu.Unlock()
		s.mtr.delayedDepth.Add(1)
		s.wakeHelper()
		return true
	}
	s.scheduleNow(t)
	return true
}

// target picks the processor for a task: explicit hint first, then entity-tag
// skew for locality, then round robin via the notify counter.
func (s *scheduler) target(t *Task) *processor {
	n := uint64(len(s.procs))
	if hint := t.state.ProcessorHint; hint >= 0 && hint < len(s.procs) {
		return s.procs[hint]
	}
	if tag := t.state.EntityTag; tag != InvalidObjectID {
		return s.procs[uint64(tag)%n]
	}
	return s.procs[s.notifyInc.Add(1)%n]
}

// scheduleNow routes t to a processor. Strictly pinned tasks (coroutine
// resume steps) go to the target's private queue, which is never stolen or
// spilled. All other tasks, including those with only a processor hint, are
// pushed onto the target's work-stealing queue,
// falling back to the group's overflow run queue on capacity overflow; while
// the group queue holds spilled tasks, new posts append behind them so the
// fallback path does not jump the queue.
func (s *scheduler) scheduleNow(t *Task) {
	p := s.target(t)

	if hint := t.state.ProcessorHint; t.strictPin && hint >= 0 && hint < len(s.procs) {
		p.pinned.push(t)
		p.signal()
		return
	}

	g := s.groupIndex(t.group)
	s.runMu.Lock()
	if len(s.overflow[g]) > 0 || !p.queue.push(t) {
		s.overflow[g] = append(s.overflow[g], t)
		depth := len(s.overflow[g])
		s.runMu.Unlock()
		s.mtr.overflowed.Add(1)
		s.log.Debug("task spilled to overflow run queue",
			zap.Int("processor", p.id), zap.Int("group", g), zap.Int("depth", depth),
			zap.Error(ErrQueueFull))
		s.signalParked(nil)
		return
	}
	backlog := p.queue.size()
	s.runMu.Unlock()

	p.signal()
	if backlog > 1 {
		// Work is piling up on one processor; wake an idle peer to steal.
		s.signalParked(p)
	}
}

func (s *scheduler) groupIndex(id ObjectID) int {
	if int(id) >= len(s.overflow) {
		return 0
	}
	return int(id)
}

// fetch hands an idle processor its next task: the overflow run queues first,
// then a steal from the busiest peer.
func (s *scheduler) fetch(exclude int) *Task {
	if t := s.overflowPop(); t != nil {
		return t
	}
	return s.steal(exclude)
}

// overflowPop drains the group queues in weighted round-robin order: each
// group may emit up to its credit count of consecutive tasks before the next
// group takes its turn.
func (s *scheduler) overflowPop() *Task {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	n := len(s.overflow)
	for i := 0; i <= n; i++ {
		if s.rrLeft > 0 && len(s.overflow[s.rrGroup]) > 0 {
			t := s.overflow[s.rrGroup][0]
			s.overflow[s.rrGroup] = s.overflow[s.rrGroup][1:]
			s.rrLeft--
			return t
		}
		s.rrGroup = (s.rrGroup + 1) % n
		s.rrLeft = s.credits[s.rrGroup]
	}
	return nil
}

// steal takes one task from the busiest peer queue. Ties break toward the
// lowest processor id, which keeps tests deterministic.
func (s *scheduler) steal(exclude int) *Task {
	var victim *processor
	best := 0
	for _, p := range s.procs {
		if p.id == exclude {
			continue
		}
		if n := p.queue.size(); n > best {
			best, victim = n, p
		}
	}
	if victim == nil {
		return nil
	}
	t := victim.queue.steal()
	if t != nil {
		s.mtr.stolen.Add(1)
	}
	return t
}

// park registers p as idle just before it blocks on its notify channel.
func (s *scheduler) park(p *processor) {
	s.parkedMu.Lock()
	s.parked = append(s.parked, p)
	s.parkedMu.Unlock()
}

// unpark removes p from the idle set after it wakes. A stale entry removed by
// signalParked first only costs the peer a spurious loop turn.
func (s *scheduler) unpark(p *processor) {
	s.parkedMu.Lock()
	for i, pp := range s.parked {
		if pp == p {
			s.parked = append(s.parked[:i], s.parked[i+1:]...)
			break
		}
	}
	s.parkedMu.Unlock()
}

// signalParked wakes one idle processor other than exclude, falling back to
// signalling every processor when none is parked.
func (s *scheduler) signalParked(exclude *processor) {
	s.parkedMu.Lock()
	var victim *processor
	for i := len(s.parked) - 1; i >= 0; i-- {
		if s.parked[i] != exclude {
			victim = s.parked[i]
			s.parked = append(s.parked[:i], s.parked[i+1:]...)
			break
		}
	}
	s.parkedMu.Unlock()

	if victim != nil {
		victim.signal()
		return
	}
	for _, p := range s.procs {
		if p != exclude {
			p.signal()
		}
	}
}

func (s *scheduler) signalAll() {
	for _, p := range s.procs {
		p.signal()
	}
	s.wakeHelper()
}

func (s *scheduler) wakeHelper() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// cancelDelayed empties the delayed heap and returns the removed tasks.
// Used at Terminate; the tasks' results have already been cancelled.
func (s *scheduler) cancelDelayed() []*Task {
	s.delayedMu.Lock()
	dropped := []*Task(s.delayed)
	s.delayed = nil
	s.delayedMu.Unlock()
	if len(dropped) > 0 {
		s.mtr.delayedDepth.Add(-int64(len(dropped)))
	}
	return dropped
}

// loop is the scheduler helper: it sleeps until the nearest deadline or a new
// insertion, then transfers due tasks to processors exactly as Post does.
func (s *scheduler) loop(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		now := time.Now()
		var due []*Task

		s.delayedMu.Lock()
		for s.delayed.Len() > 0 && !s.delayed[0].at.After(now) {
			due = append(due, heap.Pop(&s.delayed).(*Task))
		}
		wait := time.Duration(-1)
		if s.delayed.Len() > 0 {
			wait = s.delayed[0].at.Sub(now)
		}
		s.delayedMu.Unlock()

		if len(due) > 0 {
			s.mtr.delayedDepth.Add(-int64(len(due)))
			for _, t := range due {
				s.scheduleNow(t)
			}
		}

		if wait < 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case <-s.wake:
			stopTimer(timer)
		case <-timer.C:
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// taskHeap is a min-heap of delayed tasks ordered by absolute deadline.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.heapIndex = -1
	return t
}
