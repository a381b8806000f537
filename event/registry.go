package event

import (
	"slices"
	"time"

	"go.uber.org/zap"

	mul "github.com/Viet-ph/goevent/internal/multiplexer"
	"github.com/Viet-ph/goevent/internal/signalrelay"
	"github.com/Viet-ph/goevent/internal/timerqueue"
)

// registration is the registry-owned state of an added event. It stays in
// entries from Add until Del or until its one-shot callback is about to run.
type registration struct {
	ev       *Event
	interval time.Duration
	timer    *timerqueue.Item
	// armed while present in the descriptor, signal or timer indices
	armed bool
	// res accumulates firing causes while queued; zero when not queued
	res   Flags
	calls uint32
}

func newRegistration(ev *Event, interval time.Duration) *registration {
	reg := &registration{ev: ev, interval: interval}
	reg.timer = timerqueue.NewItem(reg)
	return reg
}

func (r *registration) persistent() bool {
	return r.ev.flags&Persist != 0
}

func (r *registration) watchesFd() bool {
	return r.ev.fd >= 0 && r.ev.flags&(Read|Write) != 0
}

func (r *registration) watchesSignal() bool {
	return r.ev.flags&Signal != 0
}

func (r *registration) hasTimeout() bool {
	return r.interval >= 0
}

type registry struct {
	logger  *zap.Logger
	entries map[uint64]*registration
	readers map[int][]*registration
	writers map[int][]*registration
	signals map[int][]*registration
	timers  *timerqueue.Queue
	mux     mul.Iomultiplexer
	relay   *signalrelay.Relay
	armed   int
}

func newRegistry(logger *zap.Logger, mux mul.Iomultiplexer, relay *signalrelay.Relay) *registry {
	return &registry{
		logger:  logger,
		entries: make(map[uint64]*registration),
		readers: make(map[int][]*registration),
		writers: make(map[int][]*registration),
		signals: make(map[int][]*registration),
		timers:  timerqueue.New(),
		mux:     mux,
		relay:   relay,
	}
}

func (r *registry) Len() int {
	return len(r.entries)
}

func (r *registry) lookup(id uint64) *registration {
	return r.entries[id]
}

// arm inserts reg into every index its event needs and records it.
func (r *registry) arm(reg *registration, now time.Time) error {
	ev := reg.ev

	if reg.watchesFd() {
		watched := len(r.fdOps(ev.fd)) > 0
		if ev.flags&Read != 0 {
			r.readers[ev.fd] = append(r.readers[ev.fd], reg)
		}
		if ev.flags&Write != 0 {
			r.writers[ev.fd] = append(r.writers[ev.fd], reg)
		}
		if err := r.syncFd(ev.fd, watched); err != nil {
			r.detachFd(reg)
			return err
		}
	}

	if reg.watchesSignal() {
		if len(r.signals[ev.fd]) == 0 {
			if err := r.relay.Watch(ev.fd); err != nil {
				return err
			}
		}
		r.signals[ev.fd] = append(r.signals[ev.fd], reg)
	}

	if reg.hasTimeout() {
		r.timers.Push(reg.timer, now.Add(reg.interval))
	}

	reg.armed = true
	r.armed++
	r.entries[ev.id] = reg
	return nil
}

// disarm takes reg out of the descriptor, signal and timer indices. It stays
// in entries so a queued activation can still run.
func (r *registry) disarm(reg *registration) {
	if !reg.armed {
		return
	}
	ev := reg.ev

	if reg.watchesFd() {
		r.detachFd(reg)
		if err := r.syncFd(ev.fd, true); err != nil {
			// The descriptor may already be closed, which drops it from the
			// kernel's interest list on its own.
			r.logger.Debug("error unwatching descriptor", zap.Int("fd", ev.fd), zap.Error(err))
		}
	}

	if reg.watchesSignal() {
		r.signals[ev.fd] = slices.DeleteFunc(r.signals[ev.fd], func(other *registration) bool {
			return other == reg
		})
		if len(r.signals[ev.fd]) == 0 {
			delete(r.signals, ev.fd)
			r.relay.Unwatch(ev.fd)
		}
	}

	r.timers.Remove(reg.timer)
	reg.armed = false
	r.armed--
}

func (r *registry) forget(reg *registration) {
	if r.entries[reg.ev.id] == reg {
		delete(r.entries, reg.ev.id)
	}
}

func (r *registry) remove(reg *registration) {
	r.disarm(reg)
	r.forget(reg)
}

func (r *registry) detachFd(reg *registration) {
	fd := reg.ev.fd
	same := func(other *registration) bool { return other == reg }
	if r.readers[fd] = slices.DeleteFunc(r.readers[fd], same); len(r.readers[fd]) == 0 {
		delete(r.readers, fd)
	}
	if r.writers[fd] = slices.DeleteFunc(r.writers[fd], same); len(r.writers[fd]) == 0 {
		delete(r.writers, fd)
	}
}

func (r *registry) fdOps(fd int) []int {
	var ops []int
	if len(r.readers[fd]) > 0 {
		ops = append(ops, mul.OpRead)
	}
	if len(r.writers[fd]) > 0 {
		ops = append(ops, mul.OpWrite)
	}
	return ops
}

// syncFd brings the multiplexer's interest in fd in line with the readers
// and writers lists. watched says whether fd was submitted before.
func (r *registry) syncFd(fd int, watched bool) error {
	ops := r.fdOps(fd)
	switch {
	case len(ops) == 0 && watched:
		return r.mux.RemoveWatchFd(fd)
	case len(ops) == 0:
		return nil
	case watched:
		return r.mux.ModifyWatchingFd(fd, ops...)
	default:
		return r.mux.AddWatchFd(fd, ops...)
	}
}

// removeAll drops every registration, used when the base closes.
func (r *registry) removeAll() {
	for _, reg := range r.entries {
		r.remove(reg)
	}
}
