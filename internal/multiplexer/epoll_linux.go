//go:build linux

package multiplexer

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	custom_err "github.com/Viet-ph/goevent/internal/error"
)

type Epoll struct {
	fd         int
	pollEvents []unix.EpollEvent
	ready      []Ready
}

func New(maxEvents int) (*Epoll, error) {
	if maxEvents <= 0 {
		return nil, errors.Errorf("invalid number of max events: %d", maxEvents)
	}

	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll create")
	}

	return &Epoll{
		fd:         epollFD,
		pollEvents: make([]unix.EpollEvent, maxEvents),
		ready:      make([]Ready, 0, maxEvents),
	}, nil
}

func interest(ops []int) uint32 {
	var events uint32
	for _, op := range ops {
		events |= uint32(op)
	}
	return events
}

func (epoll *Epoll) AddWatchFd(fd int, ops ...int) error {
	if len(ops) == 0 {
		return custom_err.ErrorMissingPollEvents
	}

	err := unix.EpollCtl(epoll.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: interest(ops),
		Fd:     int32(fd),
	})
	if err != nil {
		return errors.Wrapf(err, "error adding fd %d to watch list", fd)
	}

	return nil
}

func (epoll *Epoll) RemoveWatchFd(fd int) error {
	err := unix.EpollCtl(epoll.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return errors.Wrapf(err, "error removing fd %d from watch list", fd)
	}

	return nil
}

func (epoll *Epoll) ModifyWatchingFd(fd int, ops ...int) error {
	if len(ops) == 0 {
		return custom_err.ErrorMissingPollEvents
	}

	err := unix.EpollCtl(epoll.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: interest(ops),
		Fd:     int32(fd),
	})
	if err != nil {
		return errors.Wrapf(err, "error modifying fd %d in watch list", fd)
	}

	return nil
}

func (epoll *Epoll) Poll(timeout time.Duration) ([]Ready, error) {
	numEvents, err := unix.EpollWait(epoll.fd, epoll.pollEvents, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error waiting for events")
	}

	epoll.ready = epoll.ready[:0]
	for _, event := range epoll.pollEvents[:numEvents] {
		epoll.ready = append(epoll.ready, toReady(event))
	}

	return epoll.ready, nil
}

func (epoll *Epoll) Close() error {
	return unix.Close(epoll.fd)
}
