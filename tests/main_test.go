package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/asyncrt"
)

// setupRuntime initializes the default runtime for one test and tears it down
// on cleanup. Tests default to one executor with two processors so scheduling
// behavior is machine-independent.
func setupRuntime(t *testing.T, opts ...asyncrt.Option) {
	t.Helper()
	base := []asyncrt.Option{
		asyncrt.WithVirtualNumaNodes(1),
		asyncrt.WithProcessorsPerNode(2),
		asyncrt.WithoutMaxProcs(),
	}
	require.NoError(t, asyncrt.SetupRuntime(append(base, opts...)...))
	t.Cleanup(asyncrt.Terminate)
}

// parkCoroutine schedules the coroutine's first step and waits until the step
// ends, i.e. the coroutine reached its first yield or suspension point.
func parkCoroutine[R any](t *testing.T, c *asyncrt.Coroutine[R]) {
	t.Helper()
	step, err := c.Async()
	require.NoError(t, err)
	_, err = asyncrt.Await(step)
	require.NoError(t, err)
}
