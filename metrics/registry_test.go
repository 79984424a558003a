package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_CounterReuseByName(t *testing.T) {
	r := NewRegistry()

	c1 := r.Counter("tasks_total")
	c2 := r.Counter("tasks_total")
	require.Same(t, c1, c2)

	c1.Add(2)
	c2.Add(3)
	require.Equal(t, int64(5), r.CounterValue("tasks_total", nil))
}

func TestRegistry_LabelsDistinguishInstruments(t *testing.T) {
	r := NewRegistry()

	a := r.Counter("posted", WithLabels(map[string]string{"executor": "CPUExecutor_0"}))
	b := r.Counter("posted", WithLabels(map[string]string{"executor": "CPUExecutor_1"}))
	require.NotSame(t, a, b)

	a.Add(1)
	b.Add(10)
	require.Equal(t, int64(1), r.CounterValue("posted", map[string]string{"executor": "CPUExecutor_0"}))
	require.Equal(t, int64(10), r.CounterValue("posted", map[string]string{"executor": "CPUExecutor_1"}))
}

func TestRegistry_LabelOrderDoesNotMatter(t *testing.T) {
	r := NewRegistry()

	a := r.Counter("x", WithLabels(map[string]string{"a": "1", "b": "2"}))
	a.Add(7)
	require.Equal(t, int64(7), r.CounterValue("x", map[string]string{"b": "2", "a": "1"}))
}

func TestRegistry_UpDownCounter(t *testing.T) {
	r := NewRegistry()
	u := r.UpDownCounter("depth").(*RegistryUpDownCounter)
	u.Add(3)
	u.Add(-1)
	require.Equal(t, int64(2), u.Value())
}

func TestRegistry_HistogramStats(t *testing.T) {
	r := NewRegistry()
	h := r.Histogram("run_seconds").(*RegistryHistogram)
	h.Record(0.5)
	h.Record(1.5)

	count, sum := h.Stats()
	require.Equal(t, int64(2), count)
	require.InDelta(t, 2.0, sum, 1e-9)
}

func TestRegistry_MissingCounterIsZero(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, int64(0), r.CounterValue("absent", nil))
}

func TestNoopProviderIsSilent(t *testing.T) {
	p := NewNoopProvider()
	p.Counter("c").Add(1)
	p.UpDownCounter("u").Add(-1)
	p.Histogram("h").Record(1.0)
}
