// Package exec drives a tree's root node through repeated ticks until it
// reaches a terminal state or the caller's context is cancelled. This is
// the tick executor (C7): everything else in the interpreter — controller,
// facade, gas, audit — is collaborator plumbing a single node.Node already
// knows how to use; exec just calls ResumeWith in a loop and decides when
// to stop.
package exec

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/barktree/bark/internal/bark/audit"
	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/metrics"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/node"
)

var tracer = otel.Tracer("github.com/barktree/bark/internal/bark/exec")

// PollInterval is how long Run sleeps between ticks that returned Waiting,
// so a tree whose root is blocked on an in-flight async effect doesn't
// spin a CPU core polling it. Billable calls (chat, embedding, tool) run
// on their own goroutine per internal/bark/async and complete on their own
// schedule; this only paces how often the tick goroutine checks back in.
const PollInterval = 10 * time.Millisecond

// Runner threads one tree run's shared collaborators through repeated
// ResumeWith calls against its root node.
type Runner struct {
	Controller *controller.Controller
	Facade     *model.Facade
	Gas        *node.Gas
	Audit      audit.Sink
	Metrics    *metrics.Metrics
}

// Run ticks root until it reaches Complete, Failed, or ctx is cancelled.
// WaitingForGas halts the run immediately rather than being retried — gas
// exhaustion is terminal for this run, matching node.State's doc comment
// and spec.md §7's "Gas exhaustion -> WaitingForGas at the nearest
// check-point" (the caller decides whether that's fatal; Run reports it as
// the returned state rather than an error so cmd/bark can choose an exit
// code per spec.md §6's 0/1/panic contract).
func (r *Runner) Run(ctx context.Context, root node.Node) (node.State, error) {
	ctx, span := tracer.Start(ctx, "tree.run")
	defer span.End()
	if r.Audit != nil {
		if ts, ok := r.Audit.(audit.TraceStamper); ok {
			sc := span.SpanContext()
			ts.SetTrace(sc.TraceID().String(), sc.SpanID().String())
		}
	}

	if r.Metrics != nil {
		r.Metrics.TreeStarted()
		defer r.Metrics.TreeFinished()
	}

	rc := node.ResumeContext{
		Ctx:        ctx,
		Controller: r.Controller,
		Facade:     r.Facade,
		Gas:        r.Gas,
		Audit:      r.Audit,
		Path:       "root",
		Kind:       "root",
	}

	for {
		select {
		case <-ctx.Done():
			return node.Waiting, ctx.Err()
		default:
		}

		state := root.ResumeWith(rc)
		if r.Metrics != nil {
			r.Metrics.RecordTick(tickOutcome(state))
		}

		switch state {
		case node.Complete, node.Failed, node.WaitingForGas:
			return state, nil
		case node.Waiting:
			select {
			case <-ctx.Done():
				return node.Waiting, ctx.Err()
			case <-time.After(PollInterval):
			}
		default:
			return state, fmt.Errorf("exec: root node returned unrecognized state %v", state)
		}
	}
}

func tickOutcome(s node.State) string {
	switch s {
	case node.Complete:
		return "ok"
	case node.Failed:
		return "error"
	case node.WaitingForGas:
		return "blocked"
	default:
		return "waiting"
	}
}
