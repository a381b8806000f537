package event

import "strings"

// Flags select what an event waits for and report why it fired.
type Flags int16

// Values match libevent's so scripts can compare them numerically.
const (
	Timeout Flags = 0x01
	Read    Flags = 0x02
	Write   Flags = 0x04
	Signal  Flags = 0x08
	Persist Flags = 0x10
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{Timeout, "TIMEOUT"},
	{Read, "READ"},
	{Write, "WRITE"},
	{Signal, "SIGNAL"},
	{Persist, "PERSIST"},
}

func (f Flags) String() string {
	if f == 0 {
		return "NONE"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Kind is the variant of an event as derived from its flags and descriptor.
type Kind int

const (
	KindTimer Kind = iota
	KindRead
	KindWrite
	KindReadPersistent
	KindWritePersistent
	KindSignal
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindReadPersistent:
		return "read-persistent"
	case KindWritePersistent:
		return "write-persistent"
	case KindSignal:
		return "signal"
	default:
		return "timer"
	}
}

// LoopFlags alter a single Loop call.
type LoopFlags int

const (
	// LoopOnce blocks until at least one callback ran, then returns.
	LoopOnce LoopFlags = 1 << iota
	// LoopNonBlock polls without waiting, runs whatever is ready and returns.
	LoopNonBlock
)

// State of a Base's dispatch loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateAborting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAborting:
		return "aborting"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}
