// Package metrics exports animator activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/milk9111/blendrig/animator"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts animator events. It implements animator.Recorder.
type Collector struct {
	Ticks          *prometheus.CounterVec
	Started        *prometheus.CounterVec
	Committed      *prometheus.CounterVec
	Rejected       *prometheus.CounterVec
	InvalidEvals   *prometheus.CounterVec
	EngineTickTime prometheus.Histogram
}

var _ animator.Recorder = (*Collector)(nil)

func New() *Collector {
	return &Collector{
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendrig_animator_ticks_total",
				Help: "Animator updates that ran a state machine",
			},
			[]string{"animator"},
		),
		Started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendrig_transitions_started_total",
				Help: "Accepted transition requests",
			},
			[]string{"animator", "transition", "type"},
		),
		Committed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendrig_transitions_committed_total",
				Help: "Transitions that reached their destination state",
			},
			[]string{"animator", "state"},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendrig_transitions_rejected_total",
				Help: "Refused transition requests",
			},
			[]string{"animator", "transition"},
		),
		InvalidEvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendrig_invalid_evaluations_total",
				Help: "Blend tree evaluations that produced no pose",
			},
			[]string{"animator", "state"},
		),
		EngineTickTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blendrig_engine_tick_seconds",
				Help:    "Wall time of one engine tick",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
		),
	}
}

// Register adds every metric to r.
func (c *Collector) Register(r prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{c.Ticks, c.Started, c.Committed, c.Rejected, c.InvalidEvals, c.EngineTickTime} {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Tick(name string) {
	c.Ticks.WithLabelValues(name).Inc()
}

func (c *Collector) TransitionStarted(name, transition string, kind animator.TransitionType) {
	c.Started.WithLabelValues(name, transition, kind.String()).Inc()
}

func (c *Collector) TransitionCommitted(name, state string) {
	c.Committed.WithLabelValues(name, state).Inc()
}

func (c *Collector) TransitionRejected(name, transition string) {
	c.Rejected.WithLabelValues(name, transition).Inc()
}

func (c *Collector) EvaluationFailed(name, state string) {
	c.InvalidEvals.WithLabelValues(name, state).Inc()
}

// ObserveTick records how long an engine tick took.
func (c *Collector) ObserveTick(d time.Duration) {
	c.EngineTickTime.Observe(d.Seconds())
}
