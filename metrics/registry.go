package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry is an in-memory Provider keyed by instrument name plus its static
// label set, so the same name may back several instruments with distinct
// labels (as produced by the runtime's MakeMetricsCounter). Instruments are
// created on first use and reused afterwards.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*RegistryCounter
	updowns    map[string]*RegistryUpDownCounter
	histograms map[string]*RegistryHistogram
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*RegistryCounter),
		updowns:    make(map[string]*RegistryUpDownCounter),
		histograms: make(map[string]*RegistryHistogram),
	}
}

// instrumentKey folds the name and the sorted label set into a stable map key.
func instrumentKey(name string, opts []InstrumentOption) string {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if len(cfg.Labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(cfg.Labels))
	for k := range cfg.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('{')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(cfg.Labels[k])
		b.WriteByte('}')
	}
	return b.String()
}

func (r *Registry) Counter(name string, opts ...InstrumentOption) Counter {
	key := instrumentKey(name, opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[key]
	if !ok {
		c = &RegistryCounter{}
		r.counters[key] = c
	}
	return c
}

func (r *Registry) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	key := instrumentKey(name, opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updowns[key]
	if !ok {
		u = &RegistryUpDownCounter{}
		r.updowns[key] = u
	}
	return u
}

func (r *Registry) Histogram(name string, opts ...InstrumentOption) Histogram {
	key := instrumentKey(name, opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[key]
	if !ok {
		h = &RegistryHistogram{}
		r.histograms[key] = h
	}
	return h
}

// CounterValue returns the current value of the named counter, or zero when it
// has not been created. Labels must match the set used at creation.
func (r *Registry) CounterValue(name string, labels map[string]string) int64 {
	key := instrumentKey(name, []InstrumentOption{WithLabels(labels)})
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c.val.Load()
	}
	return 0
}

// RegistryCounter is a thread-safe monotonic counter.
type RegistryCounter struct {
	val atomic.Int64
}

func (c *RegistryCounter) Add(n int64) { c.val.Add(n) }

// Value returns the current count.
func (c *RegistryCounter) Value() int64 { return c.val.Load() }

// RegistryUpDownCounter is a thread-safe bidirectional counter.
type RegistryUpDownCounter struct {
	val atomic.Int64
}

func (u *RegistryUpDownCounter) Add(n int64) { u.val.Add(n) }

// Value returns the current value.
func (u *RegistryUpDownCounter) Value() int64 { return u.val.Load() }

// RegistryHistogram aggregates count and sum. It keeps no buckets; the runtime
// uses it for coarse duration accounting.
type RegistryHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
}

func (h *RegistryHistogram) Record(v float64) {
	h.mu.Lock()
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// Stats returns the number of recorded measurements and their sum.
func (h *RegistryHistogram) Stats() (count int64, sum float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count, h.sum
}
