package asyncrt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTask_ResultErrorSignature(t *testing.T) {
	task, res, err := NewTask[string](func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	task.run(context.Background())
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestNewTask_ResultSignature(t *testing.T) {
	task, res, err := NewTask[int](func(context.Context) int { return 5 })
	require.NoError(t, err)

	task.run(context.Background())
	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestNewTask_ErrorSignature(t *testing.T) {
	boom := errors.New("boom")
	task, res, err := NewTask[int](func(context.Context) error { return boom })
	require.NoError(t, err)

	task.run(context.Background())
	_, err = res.Get()
	require.ErrorIs(t, err, boom)
}

func TestNewTask_InvalidType(t *testing.T) {
	_, _, err := NewTask[int](func() int { return 1 })
	require.ErrorIs(t, err, ErrInvalidTaskType)

	_, _, err = NewTask[int]("not a function")
	require.ErrorIs(t, err, ErrInvalidTaskType)
}

func TestNewTask_PanicBecomesInternalError(t *testing.T) {
	task, res, err := NewTask[int](func(context.Context) (int, error) {
		panic("kaboom")
	})
	require.NoError(t, err)

	task.run(context.Background())
	_, err = res.Get()
	require.ErrorIs(t, err, ErrInternal)
	require.Contains(t, err.Error(), "kaboom")
}

func TestNewTask_CompletesResultAtMostOnce(t *testing.T) {
	runs := 0
	task, res, err := NewTask[int](func(context.Context) int {
		runs++
		return runs
	})
	require.NoError(t, err)

	task.run(context.Background())
	// A second run (which the scheduler never issues) cannot complete the
	// result a second time.
	task.run(context.Background())

	v, err := res.Get()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestTaskOptions(t *testing.T) {
	tag := EntityTag(7)
	task, _, err := NewTask[int](
		func(context.Context) int { return 0 },
		WithEntityTag(tag),
		WithProcessor(3),
		WithWorkGroup(ObjectID(2)),
	)
	require.NoError(t, err)

	st := task.State()
	require.Nil(t, st.Executor)
	require.Equal(t, tag, st.EntityTag)
	require.Equal(t, 3, st.ProcessorHint)
	require.Equal(t, ObjectID(2), task.WorkGroup())
}

func TestTaskDefaultState(t *testing.T) {
	task, _, err := NewTask[int](func(context.Context) int { return 0 })
	require.NoError(t, err)

	st := task.State()
	require.Nil(t, st.Executor)
	require.Equal(t, InvalidObjectID, st.EntityTag)
	require.Equal(t, -1, st.ProcessorHint)
	require.True(t, task.StartAt().IsZero())
	require.False(t, task.delayed(time.Now()))
}

func TestTaskDelay(t *testing.T) {
	task, _, err := NewTask[int](func(context.Context) int { return 0 }, WithDelay(50*time.Millisecond))
	require.NoError(t, err)

	now := time.Now()
	require.True(t, task.delayed(now))
	require.False(t, task.delayed(now.Add(100*time.Millisecond)))
}
