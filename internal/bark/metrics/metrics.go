// Package metrics exposes the tick executor's Prometheus instrumentation:
// counters and histograms for ticks, gas consumption, chat latency, and
// tool-call latency. Grounded on the teacher's internal/observability
// package (Metrics struct, one *prometheus.CounterVec/HistogramVec field
// per concern, Record*/Set* methods), but registered against an explicit
// *prometheus.Registry passed in by the caller rather than promauto's
// implicit default registry, since that is the one part of the teacher's
// pattern that makes NewMetrics unsafe to call more than once per process
// (its own test file works around this by skipping NewMetrics entirely —
// see metrics_test.go here for why this module doesn't need that
// workaround).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the tick executor's instrumentation surface. One instance is
// shared across every tree run in a process.
type Metrics struct {
	TicksTotal        *prometheus.CounterVec
	GasSpentTotal     *prometheus.CounterVec
	ChatDuration      *prometheus.HistogramVec
	ToolCallDuration  *prometheus.HistogramVec
	NodeOutcomesTotal *prometheus.CounterVec
	TreesInFlight     prometheus.Gauge
}

// New builds and registers every metric against reg. Passing
// prometheus.NewRegistry() (rather than the package-level default
// registry) keeps repeated construction — e.g. once per test — from
// panicking on a duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bark_ticks_total",
				Help: "Total number of tree ticks processed, by outcome.",
			},
			[]string{"outcome"},
		),
		GasSpentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bark_gas_spent_total",
				Help: "Total gas units spent, by node kind.",
			},
			[]string{"kind"},
		),
		ChatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bark_chat_duration_seconds",
				Help:    "Duration of ChatBackend.Chat calls in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bark_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool"},
		),
		NodeOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bark_node_outcomes_total",
				Help: "Total node ResumeWith terminal outcomes, by node kind and state.",
			},
			[]string{"kind", "state"},
		),
		TreesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bark_trees_in_flight",
				Help: "Number of tree runs currently executing.",
			},
		),
	}
	reg.MustRegister(
		m.TicksTotal,
		m.GasSpentTotal,
		m.ChatDuration,
		m.ToolCallDuration,
		m.NodeOutcomesTotal,
		m.TreesInFlight,
	)
	return m
}

// RecordTick increments the tick counter for outcome ("ok", "waiting",
// "blocked", "error").
func (m *Metrics) RecordTick(outcome string) {
	m.TicksTotal.WithLabelValues(outcome).Inc()
}

// RecordGasSpent adds units to the running total for the node kind that
// spent them.
func (m *Metrics) RecordGasSpent(kind string, units int) {
	if units <= 0 {
		return
	}
	m.GasSpentTotal.WithLabelValues(kind).Add(float64(units))
}

// RecordChatDuration observes one ChatBackend.Chat call's wall time.
func (m *Metrics) RecordChatDuration(backend string, seconds float64) {
	m.ChatDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordToolCallDuration observes one tool call's wall time.
func (m *Metrics) RecordToolCallDuration(tool string, seconds float64) {
	m.ToolCallDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordNodeOutcome increments the terminal-outcome counter for a node kind
// reaching Complete/Failed/WaitingForGas.
func (m *Metrics) RecordNodeOutcome(kind, state string) {
	m.NodeOutcomesTotal.WithLabelValues(kind, state).Inc()
}

// TreeStarted increments the in-flight gauge.
func (m *Metrics) TreeStarted() { m.TreesInFlight.Inc() }

// TreeFinished decrements the in-flight gauge.
func (m *Metrics) TreeFinished() { m.TreesInFlight.Dec() }
