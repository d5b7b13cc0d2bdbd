// Package metrics exports journey and plan generation activity to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pillars"

// Metrics implements application.Metrics with Prometheus collectors.
type Metrics struct {
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	planDuration   *prometheus.HistogramVec
	planGeneration *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered. Other registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journey",
			Name:      "transitions_total",
			Help:      "Journey lifecycle operations by event and outcome.",
		}, []string{"event", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journey",
			Name:      "rejections_total",
			Help:      "Start and resume requests refused by policy.",
		}, []string{"reason"}),
		planDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "generation_duration_seconds",
			Help:      "Time spent generating activity drafts.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"generator", "outcome"}),
		planGeneration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "generations_total",
			Help:      "Plan generation attempts by generator and outcome.",
		}, []string{"generator", "outcome"}),
	}

	m.transitions = register(reg, m.transitions)
	m.rejections = register(reg, m.rejections)
	m.planDuration = register(reg, m.planDuration)
	m.planGeneration = register(reg, m.planGeneration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveTransition(event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ObservePlanGeneration(generator, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.planGeneration.WithLabelValues(generator, outcome).Inc()
	m.planDuration.WithLabelValues(generator, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}
