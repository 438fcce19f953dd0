// Package metrics exposes launch counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the launcher's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Attempts     *prometheus.CounterVec
	Terminations *prometheus.CounterVec
	Discovered   prometheus.Gauge
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlauncher",
			Name:      "attempts_total",
			Help:      "Launch attempts by trigger and outcome.",
		}, []string{"trigger", "result"}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlauncher",
			Name:      "terminations_total",
			Help:      "Termination of previous instances by outcome.",
		}, []string{"result"}),
		Discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mlauncher",
			Name:      "discovered_instances",
			Help:      "Companion instances found by the last discovery.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Terminations, m.Discovered)
	}
	return m
}

// Attempt counts a finished attempt.
func (m *Metrics) Attempt(trigger, result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(trigger, result).Inc()
}

// Termination counts one termination outcome: "ok", "failed" or "timeout".
func (m *Metrics) Termination(result string) {
	if m == nil {
		return
	}
	m.Terminations.WithLabelValues(result).Inc()
}

// SetDiscovered records how many instances the last discovery found.
func (m *Metrics) SetDiscovered(n int) {
	if m == nil {
		return
	}
	m.Discovered.Set(float64(n))
}
