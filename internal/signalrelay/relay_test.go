package signalrelay_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	custom_err "github.com/Viet-ph/goevent/internal/error"
	"github.com/Viet-ph/goevent/internal/signalrelay"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"USR1", "SIGUSR1", "usr1"} {
		sig, err := signalrelay.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, int(unix.SIGUSR1), sig, name)
	}

	sig, err := signalrelay.Lookup("15")
	require.NoError(t, err)
	assert.Equal(t, int(unix.SIGTERM), sig)
}

func TestLookupRejectsUnknownAndUncatchable(t *testing.T) {
	for _, name := range []string{"NOPE", "EXIT", "KILL", "SIGSTOP", "0", "-3"} {
		_, err := signalrelay.Lookup(name)
		assert.True(t, errors.Is(err, custom_err.ErrorUnknownSignal), name)
	}
}

func TestWakeMakesDrainReturnNothingPending(t *testing.T) {
	r, err := signalrelay.New()
	require.NoError(t, err)
	defer r.Close()

	r.Wake()
	r.Wake()
	assert.Empty(t, r.Drain())
}

func TestWatchedSignalIsDrained(t *testing.T) {
	r, err := signalrelay.New()
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Watch(int(unix.SIGUSR2)))
	require.NoError(t, r.Watch(int(unix.SIGUSR2)))
	assert.True(t, r.Watching(int(unix.SIGUSR2)))

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR2))

	var drained []signalrelay.Delivery
	require.Eventually(t, func() bool {
		drained = append(drained, r.Drain()...)
		return len(drained) > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, drained, 1)
	assert.Equal(t, int(unix.SIGUSR2), drained[0].Signal)
	assert.EqualValues(t, 1, drained[0].Count)

	r.Unwatch(int(unix.SIGUSR2))
	assert.False(t, r.Watching(int(unix.SIGUSR2)))
}

func TestWatchRejectsInvalidSignal(t *testing.T) {
	r, err := signalrelay.New()
	require.NoError(t, err)
	defer r.Close()

	assert.Error(t, r.Watch(int(unix.SIGKILL)))
	assert.Error(t, r.Watch(0))
}

func TestWatchAfterClose(t *testing.T) {
	r, err := signalrelay.New()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.ErrorIs(t, r.Watch(int(unix.SIGUSR1)), custom_err.ErrorBaseClosed)
}

func TestWakeConcurrentWithClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		r, err := signalrelay.New()
		require.NoError(t, err)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for k := 0; k < 100; k++ {
					r.Wake()
				}
			}()
		}
		close(start)
		require.NoError(t, r.Close())
		wg.Wait()
	}
}

func TestWakeAfterCloseLeavesReusedDescriptorAlone(t *testing.T) {
	r, err := signalrelay.New()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// The next pipe is likely to reuse the relay's descriptor numbers.
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))

	r.Wake()

	_, err = unix.Read(fds[0], make([]byte, 1))
	assert.ErrorIs(t, err, unix.EAGAIN)
}
