package multiplexer

import (
	"golang.org/x/sys/unix"
)

// EventOp constants for read and write operations.
const (
	OpRead  = unix.EPOLLIN  // For Linux
	OpWrite = unix.EPOLLOUT // For Linux
)

type event = unix.EpollEvent

func GetFdFromEvent(event event) int {
	return int(event.Fd)
}

// toReady folds error and hangup conditions into both directions so the
// owner of the descriptor gets a chance to observe them on read or write.
func toReady(event event) Ready {
	failed := event.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
	return Ready{
		Fd:       GetFdFromEvent(event),
		Readable: event.Events&unix.EPOLLIN != 0 || failed,
		Writable: event.Events&unix.EPOLLOUT != 0 || failed,
	}
}
