package metrics

import (
	"github.com/barktree/bark/internal/bark/audit"
)

// Sink wraps an audit.Sink, recording node-exit outcomes into Metrics
// before forwarding every event to the inner sink unchanged. This is how
// the tick executor (internal/bark/exec) gets ticks/outcomes instrumented
// without every node needing to know metrics exist, matching SPEC_FULL's
// "the tick executor's audit sink records into it" — observability rides
// the existing Enter/Exit/Mark/Data calls instead of adding a parallel
// metrics-reporting path to the Node interface.
type Sink struct {
	inner   audit.Sink
	metrics *Metrics
}

// Wrap returns an audit.Sink that records into m and then delegates to
// inner.
func Wrap(inner audit.Sink, m *Metrics) *Sink {
	return &Sink{inner: inner, metrics: m}
}

func (s *Sink) Enter(nodePath, nodeKind string) {
	s.inner.Enter(nodePath, nodeKind)
}

func (s *Sink) Exit(nodePath, nodeKind, state string) {
	s.metrics.RecordNodeOutcome(nodeKind, state)
	s.inner.Exit(nodePath, nodeKind, state)
}

func (s *Sink) Mark(nodePath, label string) {
	s.inner.Mark(nodePath, label)
}

func (s *Sink) Data(nodePath, key string, value any) {
	s.inner.Data(nodePath, key, value)
}

func (s *Sink) Close() error {
	return s.inner.Close()
}

// SetTrace passes a trace/span pair through to the inner sink if it knows
// what to do with one, so wrapping a Logger in a Sink doesn't hide its
// audit.TraceStamper capability from exec.Runner.
func (s *Sink) SetTrace(traceID, spanID string) {
	if ts, ok := s.inner.(audit.TraceStamper); ok {
		ts.SetTrace(traceID, spanID)
	}
}

var _ audit.Sink = (*Sink)(nil)
var _ audit.TraceStamper = (*Sink)(nil)
