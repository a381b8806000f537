package event

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Clock supplies the time timer deadlines are computed from.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Option func(*Base)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(b *Base) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithPriorities sets the number of priority levels. Events default to the
// middle level.
func WithPriorities(n int) Option {
	return func(b *Base) {
		b.priorities = n
	}
}

// WithMaxEvents bounds the number of descriptors reported by one poll.
func WithMaxEvents(n int) Option {
	return func(b *Base) {
		b.maxEvents = n
	}
}

// WithMetrics registers the loop's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *Base) {
		b.registerer = reg
	}
}
