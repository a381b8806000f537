package event

import (
	custom_err "github.com/Viet-ph/goevent/internal/error"
	"github.com/Viet-ph/goevent/internal/signalrelay"
)

var (
	ErrInvalidEventSpec = custom_err.ErrorInvalidEventSpec
	ErrAlreadyActive    = custom_err.ErrorAlreadyActive
	ErrAlreadyRunning   = custom_err.ErrorAlreadyRunning
	ErrNoPendingEvents  = custom_err.ErrorNoPendingEvents
	ErrUnknownSignal    = custom_err.ErrorUnknownSignal
	ErrBaseClosed       = custom_err.ErrorBaseClosed
)

// LookupSignal resolves "USR1", "SIGUSR1" or "10" to a signal number.
func LookupSignal(name string) (int, error) {
	return signalrelay.Lookup(name)
}
