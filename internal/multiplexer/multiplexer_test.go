package multiplexer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	mul "github.com/Viet-ph/goevent/internal/multiplexer"
)

func newPipe(t *testing.T) (int, int) {
	t.Helper()
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newMultiplexer(t *testing.T) mul.Iomultiplexer {
	t.Helper()
	m, err := mul.New(16)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// pollReady polls until something is ready, tolerating interrupted waits.
func pollReady(t *testing.T, m mul.Iomultiplexer) []mul.Ready {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ready, err := m.Poll(100 * time.Millisecond)
		require.NoError(t, err)
		if len(ready) > 0 {
			return ready
		}
	}
	t.Fatal("no descriptor became ready")
	return nil
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := mul.New(size)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid number of max events")
	}
}

func TestPollTimesOutWithNoReadyDescriptors(t *testing.T) {
	m := newMultiplexer(t)
	r, _ := newPipe(t)
	require.NoError(t, m.AddWatchFd(r, mul.OpRead))

	ready, err := m.Poll(20 * time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, ready)
}

func TestPollReportsReadable(t *testing.T) {
	m := newMultiplexer(t)
	r, w := newPipe(t)
	require.NoError(t, m.AddWatchFd(r, mul.OpRead))

	_, err := unix.Write(w, []byte("x"))
	require.NoError(t, err)

	ready := pollReady(t, m)
	require.Len(t, ready, 1)
	require.Equal(t, r, ready[0].Fd)
	require.True(t, ready[0].Readable)
}

func TestPollReportsWritable(t *testing.T) {
	m := newMultiplexer(t)
	_, w := newPipe(t)
	require.NoError(t, m.AddWatchFd(w, mul.OpWrite))

	ready := pollReady(t, m)
	require.Len(t, ready, 1)
	require.Equal(t, w, ready[0].Fd)
	require.True(t, ready[0].Writable)
}

func TestModifyAndRemoveWatchFd(t *testing.T) {
	m := newMultiplexer(t)
	r, w := newPipe(t)
	_, err := unix.Write(w, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, m.AddWatchFd(w, mul.OpRead))
	ready, err := m.Poll(0)
	require.NoError(t, err)
	require.Empty(t, ready)

	require.NoError(t, m.ModifyWatchingFd(w, mul.OpWrite))
	ready = pollReady(t, m)
	require.Len(t, ready, 1)

	require.NoError(t, m.RemoveWatchFd(w))
	require.NoError(t, m.AddWatchFd(r, mul.OpRead))
	require.NoError(t, m.RemoveWatchFd(r))
	ready, err = m.Poll(0)
	require.NoError(t, err)
	require.Empty(t, ready)
}

func TestAddWatchFdRequiresOps(t *testing.T) {
	m := newMultiplexer(t)
	r, _ := newPipe(t)
	require.Error(t, m.AddWatchFd(r))
}
