// Package metrics exports dispatch loop counters through Prometheus.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "goevent"

type Collector struct {
	Iterations prometheus.Counter
	Fired      *prometheus.CounterVec
	Registered prometheus.Gauge
}

// New creates the collector and registers it with reg when reg is non-nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Number of dispatch loop iterations.",
		}),
		Fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fired_total",
			Help:      "Number of event callbacks invoked, by firing cause.",
		}, []string{"cause"}),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_registered",
			Help:      "Number of events currently registered.",
		}),
	}

	if reg == nil {
		return c, nil
	}
	var err error
	if c.Iterations, err = register(reg, c.Iterations); err != nil {
		return nil, err
	}
	if c.Fired, err = register(reg, c.Fired); err != nil {
		return nil, err
	}
	if c.Registered, err = register(reg, c.Registered); err != nil {
		return nil, err
	}
	return c, nil
}

// register adopts an identical collector already known to reg, so that
// successive bases sharing a registry add to the same series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (c *Collector) ObserveIteration() {
	if c == nil {
		return
	}
	c.Iterations.Inc()
}

func (c *Collector) ObserveFired(cause string) {
	if c == nil {
		return
	}
	c.Fired.WithLabelValues(cause).Inc()
}

func (c *Collector) SetRegistered(n int) {
	if c == nil {
		return
	}
	c.Registered.Set(float64(n))
}
