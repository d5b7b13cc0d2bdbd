package application

import "time"

// Metrics receives operational measurements. The zero-cost default discards
// them.
type Metrics interface {
	ObserveTransition(event, outcome string)
	ObservePlanGeneration(generator, outcome string, elapsed time.Duration)
	ObserveRejection(reason string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(string, string)                     {}
func (nopMetrics) ObservePlanGeneration(string, string, time.Duration) {}
func (nopMetrics) ObserveRejection(string)                              {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// Outcome labels shared by services and metrics.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeNoop     = "noop"
)
