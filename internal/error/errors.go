package custom_err

import "errors"

var (
	ErrorInvalidEventSpec = errors.New("invalid event specification")
	ErrorAlreadyActive    = errors.New("event already active")
	ErrorAlreadyRunning   = errors.New("dispatch loop already running")
	ErrorNoPendingEvents  = errors.New("no pending events")
	ErrorUnknownSignal    = errors.New("unsupported signal")
	ErrorBaseClosed       = errors.New("event base closed")

	ErrorMissingPollEvents = errors.New("missing poll events")
)
