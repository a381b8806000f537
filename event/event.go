package event

import (
	"time"

	"github.com/pkg/errors"

	"github.com/Viet-ph/goevent/internal/signalrelay"
)

// NoTimeout passed to Add arms an event without a deadline.
const NoTimeout time.Duration = -1

// Callback is invoked with the fired event. A non-nil error stops Dispatch
// and is returned from it.
type Callback func(ev *Event) error

// Event is a caller-held handle. Registration state lives in the Base.
type Event struct {
	base     *Base
	id       uint64
	fd       int
	flags    Flags
	cb       Callback
	priority int
	res      Flags
	calls    uint32
}

func (b *Base) newEvent(fd int, flags Flags, cb Callback) (*Event, error) {
	if b.closed.Load() {
		return nil, ErrBaseClosed
	}
	if cb == nil {
		return nil, errors.Wrap(ErrInvalidEventSpec, "nil callback")
	}
	if fd < -1 {
		return nil, errors.Wrapf(ErrInvalidEventSpec, "descriptor %d", fd)
	}

	flags &^= Timeout
	if flags&Signal != 0 {
		if flags&(Read|Write) != 0 {
			return nil, errors.Wrap(ErrInvalidEventSpec, "signal event cannot wait for read or write")
		}
		if !signalrelay.Valid(fd) {
			return nil, errors.Wrapf(ErrInvalidEventSpec, "%d is not a catchable signal", fd)
		}
		flags |= Persist
	}

	b.nextID++
	return &Event{
		base:     b,
		id:       b.nextID,
		fd:       fd,
		flags:    flags,
		cb:       cb,
		priority: b.priorities / 2,
	}, nil
}

// New creates an inactive event on fd. Use -1 as fd with no Read or Write
// flag for a pure timer, and a signal number with Signal for a signal event.
func (b *Base) New(fd int, flags Flags, cb Callback) (*Event, error) {
	return b.newEvent(fd, flags, cb)
}

func (b *Base) ReadEvent(fd int, cb Callback) (*Event, error) {
	return b.newEvent(fd, Read, cb)
}

func (b *Base) WriteEvent(fd int, cb Callback) (*Event, error) {
	return b.newEvent(fd, Write, cb)
}

func (b *Base) ReadPersistEvent(fd int, cb Callback) (*Event, error) {
	return b.newEvent(fd, Read|Persist, cb)
}

func (b *Base) WritePersistEvent(fd int, cb Callback) (*Event, error) {
	return b.newEvent(fd, Write|Persist, cb)
}

// TimerEvent creates a pure timer and arms it to fire after interval.
func (b *Base) TimerEvent(interval time.Duration, cb Callback) (*Event, error) {
	if interval < 0 {
		return nil, errors.Wrapf(ErrInvalidEventSpec, "timer interval %s", interval)
	}
	ev, err := b.newEvent(-1, 0, cb)
	if err != nil {
		return nil, err
	}
	if err := ev.Add(interval); err != nil {
		return nil, err
	}
	return ev, nil
}

// SignalEvent creates an inactive, persistent event for sig.
func (b *Base) SignalEvent(sig int, flags Flags, cb Callback) (*Event, error) {
	return b.newEvent(sig, flags|Signal, cb)
}

// Add arms the event. A timeout of NoTimeout (or any negative duration)
// arms it without a deadline; otherwise it fires with Timeout once timeout
// elapses, unless its descriptor or signal fires first.
func (ev *Event) Add(timeout time.Duration) error {
	return ev.base.add(ev, timeout)
}

// Del disarms the event. It never fails and a callback queued for the
// current batch will not run.
func (ev *Event) Del() {
	ev.base.del(ev)
}

// Pending reports whether the event is registered and has not fired yet.
func (ev *Event) Pending() bool {
	return ev.base.reg.lookup(ev.id) != nil
}

// SetPriority moves the event to priority p. Registered events keep
// their priority.
func (ev *Event) SetPriority(p int) error {
	if p < 0 || p >= ev.base.priorities {
		return errors.Wrapf(ErrInvalidEventSpec, "priority %d out of range [0, %d)", p, ev.base.priorities)
	}
	if ev.Pending() {
		return ErrAlreadyActive
	}
	ev.priority = p
	return nil
}

func (ev *Event) Priority() int {
	return ev.priority
}

// Fd is the descriptor, the signal number for signal events, or -1.
func (ev *Event) Fd() int {
	return ev.fd
}

func (ev *Event) Flags() Flags {
	return ev.flags
}

// Type reports what caused the most recent firing.
func (ev *Event) Type() Flags {
	return ev.res
}

// Calls is the number of deliveries folded into the last signal firing.
func (ev *Event) Calls() uint32 {
	return ev.calls
}

func (ev *Event) Base() *Base {
	return ev.base
}

func (ev *Event) Kind() Kind {
	persist := ev.flags&Persist != 0
	switch {
	case ev.flags&Signal != 0:
		return KindSignal
	case ev.fd < 0 || ev.flags&(Read|Write) == 0:
		return KindTimer
	case ev.flags&Read != 0 && persist:
		return KindReadPersistent
	case ev.flags&Read != 0:
		return KindRead
	case persist:
		return KindWritePersistent
	default:
		return KindWrite
	}
}
