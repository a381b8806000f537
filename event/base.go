package event

import (
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Viet-ph/goevent/config"
	"github.com/Viet-ph/goevent/internal/metrics"
	mul "github.com/Viet-ph/goevent/internal/multiplexer"
	"github.com/Viet-ph/goevent/internal/queue"
	"github.com/Viet-ph/goevent/internal/signalrelay"
)

// Base is one reactor: an event registry plus the loop that dispatches it.
// Except for Abort, its methods and the events it created must be used from
// a single goroutine.
type Base struct {
	id         uuid.UUID
	logger     *zap.Logger
	clock      Clock
	maxEvents  int
	priorities int
	registerer prometheus.Registerer
	metrics    *metrics.Collector

	iomultiplexer mul.Iomultiplexer
	relay         *signalrelay.Relay
	reg           *registry
	active        *queue.ActiveQueue[*registration]

	state  atomic.Int32
	abort  atomic.Bool
	nextID uint64
	closed atomic.Bool
}

// New creates a Base. Defaults come from the config package.
func New(opts ...Option) (*Base, error) {
	b := &Base{
		id:         uuid.New(),
		logger:     zap.NewNop(),
		clock:      ClockFunc(time.Now),
		maxEvents:  config.MaxEvents,
		priorities: config.Priorities,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.priorities <= 0 {
		return nil, errors.Errorf("invalid number of priorities: %d", b.priorities)
	}
	b.logger = b.logger.With(zap.Stringer("base", b.id))

	if b.registerer != nil {
		collector, err := metrics.New(b.registerer)
		if err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
		b.metrics = collector
	}

	iomultiplexer, err := mul.New(b.maxEvents)
	if err != nil {
		return nil, err
	}

	relay, err := signalrelay.New()
	if err != nil {
		iomultiplexer.Close()
		return nil, err
	}

	if err := iomultiplexer.AddWatchFd(relay.WakeFd(), mul.OpRead); err != nil {
		relay.Close()
		iomultiplexer.Close()
		return nil, err
	}

	b.iomultiplexer = iomultiplexer
	b.relay = relay
	b.reg = newRegistry(b.logger, iomultiplexer, relay)
	b.active = queue.NewActiveQueue[*registration](b.priorities)

	b.logger.Debug("event base created",
		zap.Int("max_events", b.maxEvents),
		zap.Int("priorities", b.priorities))
	return b, nil
}

func (b *Base) ID() uuid.UUID {
	return b.id
}

func (b *Base) State() State {
	return State(b.state.Load())
}

func (b *Base) Priorities() int {
	return b.priorities
}

// Len is the number of registered events.
func (b *Base) Len() int {
	return b.reg.Len()
}

func (b *Base) add(ev *Event, timeout time.Duration) error {
	if b.closed.Load() {
		return ErrBaseClosed
	}
	if ev.base != b {
		return errors.Wrap(ErrInvalidEventSpec, "event belongs to another base")
	}
	if b.reg.lookup(ev.id) != nil {
		return ErrAlreadyActive
	}
	if timeout < 0 {
		timeout = NoTimeout
	}

	reg := newRegistration(ev, timeout)
	if !reg.watchesFd() && !reg.watchesSignal() && !reg.hasTimeout() {
		return errors.Wrapf(ErrInvalidEventSpec, "event on fd %d has nothing to wait for", ev.fd)
	}

	if err := b.reg.arm(reg, b.clock.Now()); err != nil {
		return err
	}
	b.metrics.SetRegistered(b.reg.Len())

	b.logger.Debug("event added",
		zap.Uint64("event", ev.id),
		zap.Int("fd", ev.fd),
		zap.Stringer("flags", ev.flags),
		zap.Duration("timeout", timeout))
	return nil
}

func (b *Base) del(ev *Event) {
	reg := b.reg.lookup(ev.id)
	if reg == nil {
		return
	}
	b.reg.remove(reg)
	b.metrics.SetRegistered(b.reg.Len())

	b.logger.Debug("event deleted", zap.Uint64("event", ev.id), zap.Int("fd", ev.fd))
}

// Dispatch runs the loop until Abort is called, a callback fails, or no
// events remain, in which case it returns ErrNoPendingEvents.
func (b *Base) Dispatch() error {
	return b.Loop(0)
}

// Loop is Dispatch with LoopOnce or LoopNonBlock behaviour.
func (b *Base) Loop(flags LoopFlags) error {
	if b.closed.Load() {
		return ErrBaseClosed
	}
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) &&
		!b.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	defer b.state.Store(int32(StateStopped))
	b.abort.Store(false)

	for {
		wait, ok := b.nextWait(flags)
		if !ok {
			b.logger.Debug("no pending events, leaving loop")
			return ErrNoPendingEvents
		}

		ready, err := b.iomultiplexer.Poll(wait)
		if err != nil {
			b.logger.Warn("poll failed", zap.Error(err))
			return err
		}
		b.metrics.ObserveIteration()

		now := b.clock.Now()
		b.collectSignals(now)
		b.collectTimers(now)
		b.collectIO(ready, now)

		fired := 0
		err = b.active.DrainQueue(func(reg *registration) error {
			ran, err := b.fire(reg)
			if ran {
				fired++
			}
			return err
		})
		if err != nil {
			return err
		}

		if b.abort.Load() {
			b.state.Store(int32(StateAborting))
			b.logger.Debug("loop aborted")
			return nil
		}
		if flags&LoopNonBlock != 0 || (flags&LoopOnce != 0 && fired > 0) {
			return nil
		}
	}
}

// Abort makes the running loop return after its current batch. It may be
// called from callbacks or from other goroutines, also while Close runs. A
// request made while the loop is not running is discarded by the next
// Dispatch.
func (b *Base) Abort() {
	b.abort.Store(true)
	if b.State() == StateRunning {
		b.relay.Wake()
	}
}

// nextWait sizes the poll. ok is false when nothing can ever fire.
func (b *Base) nextWait(flags LoopFlags) (time.Duration, bool) {
	if b.active.Len() > 0 {
		return 0, true
	}
	if b.reg.armed == 0 {
		return 0, false
	}
	if flags&LoopNonBlock != 0 {
		return 0, true
	}
	if deadline, ok := b.reg.timers.PeekMin(); ok {
		wait := deadline.Sub(b.clock.Now())
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return -1, true
}

// activate queues reg for this batch. One-shot events leave every index
// here so they cannot be collected twice; persistent events with a timeout
// get their next deadline.
func (b *Base) activate(reg *registration, res Flags, now time.Time) {
	if reg.res == 0 {
		b.active.Add(reg.ev.priority, reg)
	}
	reg.res |= res

	if !reg.persistent() {
		b.reg.disarm(reg)
		return
	}
	if reg.hasTimeout() {
		b.reg.timers.Push(reg.timer, now.Add(reg.interval))
	}
}

func (b *Base) collectSignals(now time.Time) {
	for _, delivery := range b.relay.Drain() {
		for _, reg := range slices.Clone(b.reg.signals[delivery.Signal]) {
			reg.calls += delivery.Count
			b.activate(reg, Signal, now)
		}
	}
}

func (b *Base) collectTimers(now time.Time) {
	for _, item := range b.reg.timers.PopReady(now) {
		b.activate(item.Value.(*registration), Timeout, now)
	}
}

func (b *Base) collectIO(ready []mul.Ready, now time.Time) {
	for _, r := range ready {
		if r.Fd == b.relay.WakeFd() {
			continue
		}
		// Snapshot both lists first: activating a one-shot reader disarms it,
		// and it must still see the write half of the same readiness.
		var readers, writers []*registration
		if r.Readable {
			readers = slices.Clone(b.reg.readers[r.Fd])
		}
		if r.Writable {
			writers = slices.Clone(b.reg.writers[r.Fd])
		}
		for _, reg := range readers {
			b.activate(reg, Read, now)
		}
		for _, reg := range writers {
			b.activate(reg, Write, now)
		}
	}
}

// fire runs the callback of a queued registration unless it was deleted or
// replaced after being queued.
func (b *Base) fire(reg *registration) (bool, error) {
	ev := reg.ev
	if b.reg.lookup(ev.id) != reg {
		return false, nil
	}

	res, calls := reg.res, reg.calls
	reg.res, reg.calls = 0, 0
	if !reg.armed {
		// One-shot: gone before its callback so the callback may re-add it.
		b.reg.forget(reg)
		b.metrics.SetRegistered(b.reg.Len())
	}

	ev.res = res
	ev.calls = calls
	b.metrics.ObserveFired(strings.ToLower(res.String()))
	b.logger.Debug("event fired",
		zap.Uint64("event", ev.id),
		zap.Int("fd", ev.fd),
		zap.Stringer("res", res))

	if err := ev.cb(ev); err != nil {
		return true, errors.Wrapf(err, "callback of event %d", ev.id)
	}
	return true, nil
}

// Close releases the multiplexer, the wake pipe and every signal
// subscription. Events of a closed base can no longer be added.
func (b *Base) Close() error {
	if b.closed.Load() {
		return nil
	}
	if b.State() == StateRunning {
		return ErrAlreadyRunning
	}
	b.closed.Store(true)
	b.reg.removeAll()

	relayErr := b.relay.Close()
	if err := b.iomultiplexer.Close(); err != nil {
		return errors.Wrap(err, "close multiplexer")
	}
	return relayErr
}
