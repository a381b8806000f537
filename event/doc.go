// Package event is a single-threaded reactor. A Base owns every registered
// event and dispatches descriptor readiness, timer expiry and signal
// delivery to callbacks from one goroutine.
//
// Callers hold *Event handles; the Base's registry owns the registration
// state behind them. An event is created inactive, armed with Add, and
// either destroyed after it fires (one-shot) or re-armed (Persist). Signal
// events are always persistent.
//
//	base, _ := event.New()
//	ev, _ := base.TimerEvent(time.Second, func(ev *event.Event) error {
//		fmt.Println(ev.Type() == event.Timeout, ev.Fd())
//		return nil
//	})
//	err := base.Dispatch() // event.ErrNoPendingEvents once the timer fired
package event
