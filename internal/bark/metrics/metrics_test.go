package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/barktree/bark/internal/bark/audit"
)

// Each test builds its own *prometheus.Registry so constructing Metrics
// more than once in this file never collides on the default registry —
// see the package doc comment on why that's unlike the teacher's own
// metrics_test.go, which sidesteps the issue by never calling NewMetrics.

func TestRecordTickIncrementsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordTick("ok")
	m.RecordTick("ok")
	m.RecordTick("blocked")

	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("blocked")); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestRecordGasSpentIgnoresNonPositive(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordGasSpent("Prompt", 1000)
	m.RecordGasSpent("Prompt", 0)
	m.RecordGasSpent("Prompt", -5)

	if got := testutil.ToFloat64(m.GasSpentTotal.WithLabelValues("Prompt")); got != 1000 {
		t.Fatalf("got %v, want 1000", got)
	}
}

func TestTreeStartedAndFinishedTrackGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TreeStarted()
	m.TreeStarted()
	m.TreeFinished()

	if got := testutil.ToFloat64(m.TreesInFlight); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestSinkRecordsOutcomeAndForwardsToInner(t *testing.T) {
	m := New(prometheus.NewRegistry())
	var inner recordingSink
	s := Wrap(&inner, m)

	s.Enter("root", "Prompt")
	s.Exit("root", "Prompt", "complete")
	s.Mark("root", "checkpoint")
	s.Data("root", "k", "v")

	if got := testutil.ToFloat64(m.NodeOutcomesTotal.WithLabelValues("Prompt", "complete")); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
	if inner.enters != 1 || inner.exits != 1 || inner.marks != 1 || inner.data != 1 {
		t.Fatalf("got %+v, want all 1", inner)
	}
}

type recordingSink struct {
	enters, exits, marks, data int
}

func (r *recordingSink) Enter(string, string)        { r.enters++ }
func (r *recordingSink) Exit(string, string, string) { r.exits++ }
func (r *recordingSink) Mark(string, string)         { r.marks++ }
func (r *recordingSink) Data(string, string, any)    { r.data++ }
func (r *recordingSink) Close() error                { return nil }

var _ audit.Sink = (*recordingSink)(nil)
