package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ygrebnov/asyncrt"
	"github.com/ygrebnov/asyncrt/metrics"
)

func TestSetupTerminateRoundTrip(t *testing.T) {
	for round := 0; round < 2; round++ {
		require.NoError(t, asyncrt.SetupRuntime(
			asyncrt.WithVirtualNumaNodes(1),
			asyncrt.WithProcessorsPerNode(2),
			asyncrt.WithoutMaxProcs(),
		), "round %d", round)

		res, err := asyncrt.Async[int](func(context.Context) int { return round })
		require.NoError(t, err)
		v, err := res.Get()
		require.NoError(t, err)
		require.Equal(t, round, v)

		asyncrt.Terminate()

		_, err = asyncrt.Async[int](func(context.Context) int { return 0 })
		require.ErrorIs(t, err, asyncrt.ErrNotInitialized, "round %d", round)
	}

	// Double Terminate is a no-op.
	asyncrt.Terminate()
	asyncrt.Terminate()
}

func TestSetupIsIdempotent(t *testing.T) {
	setupRuntime(t)
	require.NoError(t, asyncrt.SetupRuntime()) // second Setup is a no-op

	res, err := asyncrt.Async[string](func(context.Context) string { return "alive" })
	require.NoError(t, err)
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, "alive", v)
}

func TestSetupRejectsDuplicateMainWorkGroup(t *testing.T) {
	err := asyncrt.SetupRuntime(
		asyncrt.WithoutMaxProcs(),
		asyncrt.WithWorkGroup(asyncrt.WorkGroupOption{Name: asyncrt.MainWorkGroup}),
	)
	require.ErrorIs(t, err, asyncrt.ErrWorkGroupExists)

	// A failed Setup leaves the runtime un-initialized.
	_, err = asyncrt.Async[int](func(context.Context) int { return 0 })
	require.ErrorIs(t, err, asyncrt.ErrNotInitialized)
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	err := asyncrt.SetupRuntime(asyncrt.WithConfig(asyncrt.RuntimeConfig{IOWorkers: -1}))
	require.ErrorIs(t, err, asyncrt.ErrInvalidConfig)
}

func TestGetWorkGroup(t *testing.T) {
	setupRuntime(t,
		asyncrt.WithWorkGroup(asyncrt.WorkGroupOption{Name: "ingest", WeightCap: 2.0, Priority: asyncrt.WorkGroupPriorityHigh}),
		asyncrt.WithWorkGroup(asyncrt.WorkGroupOption{Name: "maintenance", WeightCap: 0.5, Priority: asyncrt.WorkGroupPriorityLow}),
	)

	require.Equal(t, asyncrt.ObjectID(0), asyncrt.GetWorkGroup(asyncrt.MainWorkGroup))
	require.Equal(t, asyncrt.ObjectID(1), asyncrt.GetWorkGroup("ingest"))
	require.Equal(t, asyncrt.ObjectID(2), asyncrt.GetWorkGroup("maintenance"))
	require.Equal(t, asyncrt.InvalidObjectID, asyncrt.GetWorkGroup("absent"))

	// Tasks accounted to a configured group execute normally.
	res, err := asyncrt.Async[int](
		func(context.Context) int { return 1 },
		asyncrt.WithWorkGroup(asyncrt.GetWorkGroup("ingest")),
	)
	require.NoError(t, err)
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestEntityTagRoundTrip(t *testing.T) {
	require.Equal(t, asyncrt.InvalidObjectID, asyncrt.AddEntityTag(&struct{}{}),
		"entity registration requires a set up runtime")

	setupRuntime(t)

	tag := asyncrt.AddEntityTag(&struct{}{})
	require.NotEqual(t, asyncrt.InvalidObjectID, tag)

	res, err := asyncrt.Async[int](
		func(context.Context) int { return 3 },
		asyncrt.WithEntityTag(tag),
	)
	require.NoError(t, err)
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, 3, v)

	asyncrt.DeleteEntityTag(tag)
	asyncrt.DeleteEntityTag(tag) // unknown tags are ignored

	// Posting with a stale tag falls back to free routing.
	res, err = asyncrt.Async[int](
		func(context.Context) int { return 4 },
		asyncrt.WithEntityTag(tag),
	)
	require.NoError(t, err)
	v, err = res.Get()
	require.NoError(t, err)
	require.Equal(t, 4, v)
}

func TestAsyncRejectsInvalidTask(t *testing.T) {
	setupRuntime(t)
	_, err := asyncrt.Async[int](42)
	require.ErrorIs(t, err, asyncrt.ErrInvalidTaskType)
}

func TestMakeMetricsCounter(t *testing.T) {
	reg := metrics.NewRegistry()
	setupRuntime(t, asyncrt.WithMetrics(reg))

	labels := map[string]string{"session": "s1"}
	c := asyncrt.MakeMetricsCounter("sessions_total", labels)
	c.Add(2)
	require.Equal(t, int64(2), reg.CounterValue("sessions_total", labels))
}

func TestRunAll(t *testing.T) {
	setupRuntime(t)

	fns := make([]interface{}, 5)
	for i := range fns {
		i := i
		fns[i] = func(context.Context) int { return i * i }
	}

	values, err := asyncrt.RunAll[int](fns)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 4, 9, 16}, values)
}

func TestForEach(t *testing.T) {
	setupRuntime(t)

	items := []int{1, 2, 3, 4}
	sum := make(chan int, len(items))
	err := asyncrt.ForEach(items, func(item int) error {
		sum <- item
		return nil
	})
	require.NoError(t, err)
	close(sum)

	total := 0
	for v := range sum {
		total += v
	}
	require.Equal(t, 10, total)
}

func TestAsyncIO(t *testing.T) {
	setupRuntime(t)

	res, err := asyncrt.AsyncIO[string](func(context.Context) string {
		return "read 42 bytes"
	})
	require.NoError(t, err)
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, "read 42 bytes", v)
}

func TestProfilerHooksFireAtLifecycleBoundaries(t *testing.T) {
	var started, stopped int
	require.NoError(t, asyncrt.SetupRuntime(
		asyncrt.WithVirtualNumaNodes(1),
		asyncrt.WithProcessorsPerNode(1),
		asyncrt.WithoutMaxProcs(),
		asyncrt.WithLogger(zap.NewNop()),
		asyncrt.WithProfiler(
			func() { started++ },
			func() { stopped++ },
		),
	))

	require.Equal(t, 1, started)
	require.Equal(t, 0, stopped)

	asyncrt.Terminate()
	require.Equal(t, 1, started)
	require.Equal(t, 1, stopped)
}

func TestAsyncIORequiresSetup(t *testing.T) {
	_, err := asyncrt.AsyncIO[int](func(context.Context) int { return 0 })
	require.ErrorIs(t, err, asyncrt.ErrNotInitialized)
}
