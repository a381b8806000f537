package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/Viet-ph/goevent/event"
)

func newBase(t *testing.T, opts ...event.Option) *event.Base {
	t.Helper()
	base, err := event.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })
	return base
}

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

func nop(*event.Event) error { return nil }

func TestAddHelpersOnSentinelDescriptor(t *testing.T) {
	base := newBase(t)
	helpers := map[string]func(int, event.Callback) (*event.Event, error){
		"read":          base.ReadEvent,
		"write":         base.WriteEvent,
		"read-persist":  base.ReadPersistEvent,
		"write-persist": base.WritePersistEvent,
	}

	for name, helper := range helpers {
		ev, err := helper(-1, nop)
		require.NoError(t, err, name)
		require.NotNil(t, ev, name)
		assert.Equal(t, -1, ev.Fd(), name)
		assert.False(t, ev.Pending(), name)

		assert.ErrorIs(t, ev.Add(event.NoTimeout), event.ErrInvalidEventSpec, name)
		ev.Del()
	}
}

func TestNewRejectsMalformedEvents(t *testing.T) {
	base := newBase(t)

	_, err := base.New(-1, 0, nil)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)

	_, err = base.New(-2, event.Read, nop)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)

	_, err = base.New(int(unix.SIGUSR1), event.Signal|event.Read, nop)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)

	_, err = base.SignalEvent(0, 0, nop)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)

	_, err = base.SignalEvent(int(unix.SIGKILL), 0, nop)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)

	_, err = base.TimerEvent(-time.Second, nop)
	assert.ErrorIs(t, err, event.ErrInvalidEventSpec)
}

func TestSignalEventsArePersistent(t *testing.T) {
	base := newBase(t)
	ev, err := base.SignalEvent(int(unix.SIGUSR1), event.Signal, nop)
	require.NoError(t, err)
	assert.Equal(t, event.Signal|event.Persist, ev.Flags())
	assert.Equal(t, event.KindSignal, ev.Kind())
}

func TestKind(t *testing.T) {
	base := newBase(t)
	r, w := newPipe(t)

	cases := []struct {
		fd    int
		flags event.Flags
		kind  event.Kind
	}{
		{-1, 0, event.KindTimer},
		{-1, event.Read, event.KindTimer},
		{r, event.Read, event.KindRead},
		{w, event.Write, event.KindWrite},
		{r, event.Read | event.Persist, event.KindReadPersistent},
		{w, event.Write | event.Persist, event.KindWritePersistent},
	}
	for _, tc := range cases {
		ev, err := base.New(tc.fd, tc.flags, nop)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, ev.Kind(), tc.flags.String())
	}
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "NONE", event.Flags(0).String())
	assert.Equal(t, "TIMEOUT", event.Timeout.String())
	assert.Equal(t, "READ|WRITE|PERSIST", (event.Read | event.Write | event.Persist).String())
	assert.Equal(t, "SIGNAL|PERSIST", (event.Signal | event.Persist).String())
}

func TestConstantsMatchLibevent(t *testing.T) {
	assert.EqualValues(t, 0x01, event.Timeout)
	assert.EqualValues(t, 0x02, event.Read)
	assert.EqualValues(t, 0x04, event.Write)
	assert.EqualValues(t, 0x08, event.Signal)
	assert.EqualValues(t, 0x10, event.Persist)
}

func TestAddTwiceFailsUntilFired(t *testing.T) {
	base := newBase(t)
	ev, err := base.New(-1, 0, nop)
	require.NoError(t, err)

	require.NoError(t, ev.Add(10*time.Millisecond))
	assert.ErrorIs(t, ev.Add(10*time.Millisecond), event.ErrAlreadyActive)
	assert.Equal(t, 1, base.Len())

	require.ErrorIs(t, base.Dispatch(), event.ErrNoPendingEvents)
	assert.False(t, ev.Pending())
	require.NoError(t, ev.Add(0))
	ev.Del()
	require.NoError(t, ev.Add(0))
}

func TestSetPriority(t *testing.T) {
	base := newBase(t, event.WithPriorities(3))
	ev, err := base.New(-1, 0, nop)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Priority())

	require.NoError(t, ev.SetPriority(0))
	assert.ErrorIs(t, ev.SetPriority(3), event.ErrInvalidEventSpec)
	assert.ErrorIs(t, ev.SetPriority(-1), event.ErrInvalidEventSpec)

	require.NoError(t, ev.Add(time.Hour))
	assert.ErrorIs(t, ev.SetPriority(2), event.ErrAlreadyActive)
	assert.Equal(t, 0, ev.Priority())
}

func TestLookupSignal(t *testing.T) {
	sig, err := event.LookupSignal("USR1")
	require.NoError(t, err)
	assert.Equal(t, int(unix.SIGUSR1), sig)

	_, err = event.LookupSignal("BOGUS")
	assert.ErrorIs(t, err, event.ErrUnknownSignal)
}

func TestNewRejectsBadPriorities(t *testing.T) {
	_, err := event.New(event.WithPriorities(0))
	assert.Error(t, err)
}
