// Package luaevent exposes an event.Base to Lua scripts running on
// gopher-lua.
//
// Scripts see the classic event API: event_init, event_dispatch,
// event_abort, the add_r/add_w/add_rp/add_wp helpers, the Event,
// TimerEvent and SignalEvent classes and the EV_* flag constants.
// Intervals are given in seconds and may be fractional.
package luaevent

import (
	"math"
	"time"

	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Viet-ph/goevent/event"
)

// ModuleName is the name scripts require when the binding is preloaded.
const ModuleName = "goevent"

const eventTypeName = "goevent.event"

// Binding owns the Base a Lua state dispatches. Like the Base and the
// LState it must be used from a single goroutine.
type Binding struct {
	L          *lua.LState
	logger     *zap.Logger
	opts       []event.Option
	priorities int
	base       *event.Base
}

// New creates a Binding without installing anything into L. opts are
// passed to every Base the script initialises.
func New(L *lua.LState, logger *zap.Logger, opts ...event.Option) *Binding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binding{
		L:      L,
		logger: logger,
		opts:   append([]event.Option{event.WithLogger(logger)}, opts...),
	}
}

// Open creates a Binding and installs its API as globals of L.
func Open(L *lua.LState, logger *zap.Logger, opts ...event.Option) *Binding {
	b := New(L, logger, opts...)
	b.module(L).ForEach(func(k, v lua.LValue) {
		L.SetGlobal(k.String(), v)
	})
	return b
}

// Preload creates a Binding whose API scripts load with
// require("goevent").
func Preload(L *lua.LState, logger *zap.Logger, opts ...event.Option) *Binding {
	b := New(L, logger, opts...)
	L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(b.module(L))
		return 1
	})
	return b
}

// Base returns the current Base, creating one when the script has not
// called event_init yet.
func (b *Binding) Base() (*event.Base, error) {
	if b.base != nil {
		return b.base, nil
	}
	opts := b.opts
	if b.priorities > 0 {
		opts = append(opts[:len(opts):len(opts)], event.WithPriorities(b.priorities))
	}
	base, err := event.New(opts...)
	if err != nil {
		return nil, err
	}
	b.base = base
	return base, nil
}

// Reset replaces the current Base with a fresh one. It fails while the
// current Base is dispatching.
func (b *Binding) Reset() error {
	if b.base != nil {
		if err := b.base.Close(); err != nil {
			return err
		}
		b.base = nil
	}
	_, err := b.Base()
	return err
}

func (b *Binding) Close() error {
	if b.base == nil {
		return nil
	}
	err := b.base.Close()
	b.base = nil
	return err
}

func (b *Binding) module(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(eventTypeName)
	L.SetField(mt, "__index", L.NewFunction(b.index))
	L.SetField(mt, "__tostring", L.NewFunction(eventToString))

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"event_init":     b.luaInit,
		"event_dispatch": b.luaDispatch,
		"event_loop":     b.luaLoop,
		"event_abort":    b.luaAbort,
		"add_r":          b.helper(event.Read),
		"add_w":          b.helper(event.Write),
		"add_rp":         b.helper(event.Read | event.Persist),
		"add_wp":         b.helper(event.Write | event.Persist),
	})
	L.SetField(mod, "Event", b.class(L, b.newEvent))
	L.SetField(mod, "TimerEvent", b.class(L, b.newTimerEvent))
	L.SetField(mod, "SignalEvent", b.class(L, b.newSignalEvent))
	L.SetField(mod, "process", processTable(L))

	for name, value := range map[string]int{
		"EV_TIMEOUT":      int(event.Timeout),
		"EV_READ":         int(event.Read),
		"EV_WRITE":        int(event.Write),
		"EV_SIGNAL":       int(event.Signal),
		"EV_PERSIST":      int(event.Persist),
		"EVLOOP_ONCE":     int(event.LoopOnce),
		"EVLOOP_NONBLOCK": int(event.LoopNonBlock),
	} {
		L.SetField(mod, name, lua.LNumber(value))
	}
	return mod
}

func (b *Binding) class(L *lua.LState, ctor lua.LGFunction) *lua.LTable {
	cls := L.NewTable()
	L.SetField(cls, "new", L.NewFunction(ctor))
	return cls
}

// mustBase is Base for use inside Lua functions; failures raise a Lua error.
func (b *Binding) mustBase(L *lua.LState) *event.Base {
	base, err := b.Base()
	if err != nil {
		L.RaiseError("event_init: %v", err)
	}
	return base
}

// event_init([priorities])
func (b *Binding) luaInit(L *lua.LState) int {
	if L.GetTop() >= 1 {
		b.priorities = L.CheckInt(1)
	}
	if err := b.Reset(); err != nil {
		L.RaiseError("event_init: %v", err)
	}
	b.logger.Debug("lua event base initialised", zap.Stringer("base", b.base.ID()))
	return 0
}

// event_dispatch() returns 0 when aborted and 1 when no events are left.
// A failing callback raises its error.
func (b *Binding) luaDispatch(L *lua.LState) int {
	return b.pushLoopResult(L, b.mustBase(L).Dispatch())
}

// event_loop(flags) is event_dispatch with EVLOOP_ONCE or EVLOOP_NONBLOCK.
func (b *Binding) luaLoop(L *lua.LState) int {
	flags := event.LoopFlags(L.OptInt(1, 0))
	return b.pushLoopResult(L, b.mustBase(L).Loop(flags))
}

func (b *Binding) pushLoopResult(L *lua.LState, err error) int {
	switch {
	case err == nil:
		L.Push(lua.LNumber(0))
	case errors.Is(err, event.ErrNoPendingEvents):
		L.Push(lua.LNumber(1))
	default:
		L.RaiseError("%v", err)
	}
	return 1
}

func (b *Binding) luaAbort(L *lua.LState) int {
	b.mustBase(L).Abort()
	return 0
}

// add_r(fd, fn) and friends create an event without adding it.
func (b *Binding) helper(flags event.Flags) lua.LGFunction {
	return func(L *lua.LState) int {
		fd := L.CheckInt(1)
		fn := L.CheckFunction(2)
		L.Push(b.wrap(L, fd, flags, fn))
		return 1
	}
}

// Event.new(fd, flags, fn)
func (b *Binding) newEvent(L *lua.LState) int {
	fd := L.CheckInt(1)
	flags := event.Flags(L.CheckInt(2))
	fn := L.CheckFunction(3)
	L.Push(b.wrap(L, fd, flags, fn))
	return 1
}

// TimerEvent.new(seconds, fn) creates an event and adds it.
func (b *Binding) newTimerEvent(L *lua.LState) int {
	interval := checkSeconds(L, 1)
	fn := L.CheckFunction(2)
	ud := b.wrap(L, -1, 0, fn)
	if err := ud.Value.(*event.Event).Add(interval); err != nil {
		L.RaiseError("TimerEvent.new: %v", err)
	}
	L.Push(ud)
	return 1
}

// SignalEvent.new(signal, flags, fn) where signal is a name such as "USR1"
// or a number.
func (b *Binding) newSignalEvent(L *lua.LState) int {
	sig := checkSignal(L, 1)
	flags := event.Flags(L.OptInt(2, int(event.Signal)))
	fn := L.CheckFunction(3)
	L.Push(b.wrap(L, sig, flags|event.Signal, fn))
	return 1
}

func (b *Binding) wrap(L *lua.LState, fd int, flags event.Flags, fn *lua.LFunction) *lua.LUserData {
	ud := L.NewUserData()
	ev, err := b.mustBase(L).New(fd, flags, b.callback(fn, ud))
	if err != nil {
		L.RaiseError("%v", err)
	}
	ud.Value = ev
	L.SetMetatable(ud, L.GetTypeMetatable(eventTypeName))
	return ud
}

// callback runs fn with the event userdata on the binding's state. Lua
// errors come back as Go errors and stop the dispatch.
func (b *Binding) callback(fn *lua.LFunction, ud *lua.LUserData) event.Callback {
	return func(*event.Event) error {
		return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ud)
	}
}

func checkEvent(L *lua.LState, n int) *event.Event {
	ud := L.CheckUserData(n)
	if ev, ok := ud.Value.(*event.Event); ok {
		return ev
	}
	L.ArgError(n, "event expected")
	return nil
}

func (b *Binding) index(L *lua.LState) int {
	ev := checkEvent(L, 1)
	switch key := L.CheckString(2); key {
	case "evtype":
		L.Push(lua.LNumber(ev.Type()))
	case "fileno", "signal":
		L.Push(lua.LNumber(ev.Fd()))
	case "flags":
		L.Push(lua.LNumber(ev.Flags()))
	case "priority":
		L.Push(lua.LNumber(ev.Priority()))
	case "calls":
		L.Push(lua.LNumber(ev.Calls()))
	case "pending":
		L.Push(lua.LBool(ev.Pending()))
	case "add":
		L.Push(L.NewFunction(eventAdd))
	case "delete":
		L.Push(L.NewFunction(eventDelete))
	case "set_priority":
		L.Push(L.NewFunction(eventSetPriority))
	default:
		L.Push(lua.LNil)
	}
	return 1
}

// ev:add([seconds])
func eventAdd(L *lua.LState) int {
	ev := checkEvent(L, 1)
	timeout := event.NoTimeout
	if v := L.Get(2); v != lua.LNil {
		timeout = checkSeconds(L, 2)
	}
	if err := ev.Add(timeout); err != nil {
		L.RaiseError("add: %v", err)
	}
	L.Push(L.Get(1))
	return 1
}

// ev:delete()
func eventDelete(L *lua.LState) int {
	checkEvent(L, 1).Del()
	return 0
}

// ev:set_priority(p)
func eventSetPriority(L *lua.LState) int {
	ev := checkEvent(L, 1)
	if err := ev.SetPriority(L.CheckInt(2)); err != nil {
		L.RaiseError("set_priority: %v", err)
	}
	return 0
}

func eventToString(L *lua.LState) int {
	ev := checkEvent(L, 1)
	L.Push(lua.LString("event(" + ev.Kind().String() + ")"))
	return 1
}

// checkSeconds reads argument n as a number of seconds. Values that are not
// finite or do not fit a time.Duration raise an argument error.
func checkSeconds(L *lua.LState, n int) time.Duration {
	ns := float64(L.CheckNumber(n)) * float64(time.Second)
	if math.IsNaN(ns) || ns >= math.MaxInt64 || ns < math.MinInt64 {
		L.ArgError(n, "interval out of range")
	}
	return time.Duration(ns)
}
