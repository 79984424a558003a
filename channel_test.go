package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannel_SendWithZeroWatchersDiscards(t *testing.T) {
	ch := MakeChannel[int]()
	require.NoError(t, ch.Send(1)) // must not block
	require.Equal(t, 0, ch.Watchers())

	// A watcher registered after the send does not see it.
	w := ch.Watch()
	require.NoError(t, ch.Send(2))
	v, err := w.AsyncReceive().Get()
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestChannel_FanOutFIFOPerWatcher(t *testing.T) {
	ch := MakeChannel[int]()
	w1 := ch.Watch()
	w2 := ch.Watch()

	for i := 0; i < 5; i++ {
		require.NoError(t, ch.Send(i))
	}

	for _, w := range []*Watcher[int]{w1, w2} {
		for i := 0; i < 5; i++ {
			v, err := w.AsyncReceive().Get()
			require.NoError(t, err)
			require.Equal(t, i, v, "every watcher sees the full send order")
		}
	}
}

func TestChannel_PendingReceiveCompletedBySend(t *testing.T) {
	ch := MakeChannel[string]()
	w := ch.Watch()

	r := w.AsyncReceive()
	require.False(t, r.Done())

	require.NoError(t, ch.Send("hello"))
	v, err := r.Get()
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestChannel_RepeatedAsyncReceiveSharesPending(t *testing.T) {
	ch := MakeChannel[int]()
	w := ch.Watch()

	r1 := w.AsyncReceive()
	r2 := w.AsyncReceive()
	require.Same(t, r1, r2)

	require.NoError(t, ch.Send(1))
	v, err := r1.Get()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestChannel_WatcherCloseCancelsPending(t *testing.T) {
	ch := MakeChannel[int]()
	w := ch.Watch()

	r := w.AsyncReceive()
	w.Close()

	_, err := r.Get()
	require.ErrorIs(t, err, ErrCancelled)

	// A closed watcher keeps failing receives and stops seeing sends.
	_, err = w.AsyncReceive().Get()
	require.ErrorIs(t, err, ErrCancelled)
	require.Equal(t, 0, ch.Watchers())
	require.NoError(t, ch.Send(1))
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	ch := MakeChannel[int]()
	w := ch.Watch()
	w.Close()
	w.Close()
	require.Equal(t, 0, ch.Watchers())
}

func TestChannel_DefaultWatcher(t *testing.T) {
	ch := MakeChannel[int]()

	r := AsyncReceive(ch)
	require.NoError(t, ch.Send(10))
	v, err := r.Get()
	require.NoError(t, err)
	require.Equal(t, 10, v)

	// The default watcher is registered once and reused.
	require.Equal(t, 1, ch.Watchers())
	require.NoError(t, ch.Send(11))
	v, err = AsyncReceive(ch).Get()
	require.NoError(t, err)
	require.Equal(t, 11, v)
}

func TestChannel_BoundedSendFailsWhenFull(t *testing.T) {
	ch := MakeChannelCap[int](2)
	w := ch.Watch()

	require.NoError(t, ch.Send(0))
	require.NoError(t, ch.Send(1))
	require.ErrorIs(t, ch.Send(2), ErrWouldBlock)

	// Draining one slot admits the next send; nothing was dropped silently.
	v, err := w.AsyncReceive().Get()
	require.NoError(t, err)
	require.Equal(t, 0, v)
	require.NoError(t, ch.Send(2))

	for _, expected := range []int{1, 2} {
		v, err = w.AsyncReceive().Get()
		require.NoError(t, err)
		require.Equal(t, expected, v)
	}
}

func TestChannel_TotalOrderAcrossWatchers(t *testing.T) {
	ch := MakeChannel[int]()
	watchers := make([]*Watcher[int], 3)
	for i := range watchers {
		watchers[i] = ch.Watch()
	}

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, ch.Send(i))
	}

	for _, w := range watchers {
		for i := 0; i < n; i++ {
			v, err := w.AsyncReceive().Get()
			require.NoError(t, err)
			require.Equal(t, i, v)
		}
	}
}
