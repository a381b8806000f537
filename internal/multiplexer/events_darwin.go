package multiplexer

import (
	"golang.org/x/sys/unix"
)

// EventOp constants for read and write operations.
const (
	OpRead  = unix.EVFILT_READ  // For Darwin
	OpWrite = unix.EVFILT_WRITE // For Darwin
)

type event = unix.Kevent_t

func GetFdFromEvent(event event) int {
	return int(event.Ident)
}

// kqueue reports each filter separately; EOF arrives on the filter that
// was registered, so no folding is needed here.
func toReady(event event) Ready {
	return Ready{
		Fd:       GetFdFromEvent(event),
		Readable: event.Filter == unix.EVFILT_READ,
		Writable: event.Filter == unix.EVFILT_WRITE,
	}
}
