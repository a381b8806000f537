//go:build darwin

package multiplexer

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	custom_err "github.com/Viet-ph/goevent/internal/error"
)

type Kqueue struct {
	fd       int
	kqEvents []unix.Kevent_t
	ready    []Ready
	// filters registered per fd, kqueue rejects deleting unknown filters
	filters map[int][]int16
}

func New(maxEvents int) (*Kqueue, error) {
	if maxEvents <= 0 {
		return nil, errors.Errorf("invalid number of max events: %d", maxEvents)
	}

	kqFD, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "kqueue create")
	}
	unix.CloseOnExec(kqFD)

	return &Kqueue{
		fd:       kqFD,
		kqEvents: make([]unix.Kevent_t, maxEvents),
		ready:    make([]Ready, 0, maxEvents),
		filters:  make(map[int][]int16),
	}, nil
}

func (kq *Kqueue) change(fd int, filters []int16, flags uint16) error {
	if len(filters) == 0 {
		return nil
	}

	changes := make([]unix.Kevent_t, 0, len(filters))
	for _, filter := range filters {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  flags,
		})
	}

	_, err := unix.Kevent(kq.fd, changes, nil, nil)
	return err
}

func (kq *Kqueue) AddWatchFd(fd int, ops ...int) error {
	if len(ops) == 0 {
		return custom_err.ErrorMissingPollEvents
	}

	filters := make([]int16, 0, len(ops))
	for _, op := range ops {
		filters = append(filters, int16(op))
	}

	if err := kq.change(fd, filters, unix.EV_ADD|unix.EV_ENABLE); err != nil {
		return errors.Wrapf(err, "error adding fd %d to watch list", fd)
	}
	kq.filters[fd] = filters

	return nil
}

func (kq *Kqueue) RemoveWatchFd(fd int) error {
	filters := kq.filters[fd]
	delete(kq.filters, fd)

	if err := kq.change(fd, filters, unix.EV_DELETE); err != nil {
		return errors.Wrapf(err, "error removing fd %d from watch list", fd)
	}

	return nil
}

func (kq *Kqueue) ModifyWatchingFd(fd int, ops ...int) error {
	if len(ops) == 0 {
		return custom_err.ErrorMissingPollEvents
	}

	err := kq.RemoveWatchFd(fd)
	if err != nil {
		return errors.Wrapf(err, "error modifying fd %d in watch list", fd)
	}

	return kq.AddWatchFd(fd, ops...)
}

func (kq *Kqueue) Poll(timeout time.Duration) ([]Ready, error) {
	var ts *unix.Timespec
	if msec := timeoutMillis(timeout); msec >= 0 {
		spec := unix.NsecToTimespec(int64(msec) * int64(time.Millisecond))
		ts = &spec
	}

	numEvents, err := unix.Kevent(kq.fd, nil, kq.kqEvents, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error waiting for events")
	}

	// Read and write filters of one fd come back as separate kevents.
	kq.ready = kq.ready[:0]
	index := make(map[int]int, numEvents)
	for _, event := range kq.kqEvents[:numEvents] {
		r := toReady(event)
		if i, ok := index[r.Fd]; ok {
			kq.ready[i].Readable = kq.ready[i].Readable || r.Readable
			kq.ready[i].Writable = kq.ready[i].Writable || r.Writable
			continue
		}
		index[r.Fd] = len(kq.ready)
		kq.ready = append(kq.ready, r)
	}

	return kq.ready, nil
}

func (kq *Kqueue) Close() error {
	return unix.Close(kq.fd)
}
