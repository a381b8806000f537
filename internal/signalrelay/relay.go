// Package signalrelay turns asynchronous signal delivery into pending marks
// the dispatch loop drains synchronously, plus a wake descriptor it can poll.
//
// The Go runtime owns the real signal handler. For every watched signal a
// forwarding goroutine does nothing but bump an atomic counter and write one
// byte into a non-blocking pipe; callbacks never run from that goroutine.
package signalrelay

import (
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	custom_err "github.com/Viet-ph/goevent/internal/error"
)

// maxSignal bounds the signal numbers the relay can track.
const maxSignal = 65

type watch struct {
	ch   chan os.Signal
	done chan struct{}
}

type Relay struct {
	wakeR   int
	wakeW   int
	pending [maxSignal]atomic.Uint32
	watches map[int]*watch
	closed  atomic.Bool
	// held for reading around wake pipe writes, for writing while the
	// pipe is closed
	wakeMu sync.RWMutex
}

func New() (*Relay, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, errors.Wrap(err, "create wake pipe")
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, errors.Wrap(err, "set wake pipe non-blocking")
		}
	}

	return &Relay{
		wakeR:   fds[0],
		wakeW:   fds[1],
		watches: make(map[int]*watch),
	}, nil
}

// Valid reports whether sig can be caught and relayed.
func Valid(sig int) bool {
	return sig > 0 && sig < maxSignal &&
		syscall.Signal(sig) != unix.SIGKILL && syscall.Signal(sig) != unix.SIGSTOP
}

// Lookup resolves a signal given by number, by name or by name without the
// SIG prefix ("USR1", "SIGUSR1", "10").
func Lookup(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if !Valid(n) {
			return 0, errors.Wrapf(custom_err.ErrorUnknownSignal, "signal %d", n)
		}
		return n, nil
	}

	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	sig := int(unix.SignalNum(upper))
	if !Valid(sig) {
		return 0, errors.Wrapf(custom_err.ErrorUnknownSignal, "`%s'", upper)
	}
	return sig, nil
}

// WakeFd is the read end of the wake pipe; it becomes readable whenever a
// signal is marked pending or Wake is called.
func (r *Relay) WakeFd() int {
	return r.wakeR
}

// Wake makes WakeFd readable. It is safe to call from any goroutine,
// including concurrently with Close, after which it does nothing.
func (r *Relay) Wake() {
	r.wakeMu.RLock()
	defer r.wakeMu.RUnlock()
	if r.closed.Load() {
		return
	}
	// A full pipe already guarantees a wakeup.
	_, _ = unix.Write(r.wakeW, []byte{0})
}

// Watching reports whether sig is currently relayed.
func (r *Relay) Watching(sig int) bool {
	_, ok := r.watches[sig]
	return ok
}

// Watch starts relaying sig. Watching an already watched signal is a no-op.
func (r *Relay) Watch(sig int) error {
	if r.closed.Load() {
		return custom_err.ErrorBaseClosed
	}
	if !Valid(sig) {
		return errors.Wrapf(custom_err.ErrorUnknownSignal, "signal %d", sig)
	}
	if _, ok := r.watches[sig]; ok {
		return nil
	}

	w := &watch{
		ch:   make(chan os.Signal, 8),
		done: make(chan struct{}),
	}
	signal.Notify(w.ch, syscall.Signal(sig))
	r.watches[sig] = w
	go r.forward(sig, w)

	return nil
}

func (r *Relay) forward(sig int, w *watch) {
	for {
		select {
		case <-w.ch:
			r.pending[sig].Add(1)
			r.Wake()
		case <-w.done:
			return
		}
	}
}

// Unwatch stops relaying sig and restores its previous disposition.
func (r *Relay) Unwatch(sig int) {
	w, ok := r.watches[sig]
	if !ok {
		return
	}
	signal.Stop(w.ch)
	close(w.done)
	delete(r.watches, sig)
}

// Drain empties the wake pipe and returns the signals marked pending since
// the previous drain, in ascending order, with their delivery counts.
func (r *Relay) Drain() []Delivery {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(r.wakeR, buf)
		if n <= 0 || err != nil {
			break
		}
	}

	var delivered []Delivery
	for sig := 1; sig < maxSignal; sig++ {
		if n := r.pending[sig].Swap(0); n > 0 {
			delivered = append(delivered, Delivery{Signal: sig, Count: n})
		}
	}
	return delivered
}

// Delivery is one drained signal.
type Delivery struct {
	Signal int
	Count  uint32
}

func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	for sig := range r.watches {
		r.Unwatch(sig)
	}

	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	unix.Close(r.wakeW)
	return unix.Close(r.wakeR)
}
