package multiplexer

import (
	"math"
	"time"
)

// Ready reports the readiness of one descriptor after a Poll.
type Ready struct {
	Fd       int
	Readable bool
	Writable bool
}

type Iomultiplexer interface {
	AddWatchFd(fd int, ops ...int) error
	RemoveWatchFd(fd int) error
	ModifyWatchingFd(fd int, ops ...int) error
	// Poll blocks until a watched descriptor is ready or timeout elapses.
	// A negative timeout blocks indefinitely. Timeouts and interrupted
	// waits return an empty slice and a nil error.
	Poll(timeout time.Duration) ([]Ready, error)
	Close() error
}

// timeoutMillis rounds timeout up to whole milliseconds so a wait never
// returns before a timer deadline it was sized for. The kernel reads the
// value as a 32-bit int; longer waits are capped and the caller polls again.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	msec := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		msec++
	}
	if msec > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(msec)
}
