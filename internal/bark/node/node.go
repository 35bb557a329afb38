// Package node holds the behavior-tree node catalog: every leaf and
// control-flow node a tree descriptor can compose, each implementing the
// same small Node interface so the tick executor (internal/bark/exec)
// never needs to know which concrete node it is driving.
package node

import (
	"context"

	"github.com/barktree/bark/internal/bark/audit"
	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/model"
)

// State is the outcome of one ResumeWith call.
type State int

const (
	// Complete means the node finished successfully this tick or a
	// previous one; ResumeWith will not be called again until Reset.
	Complete State = iota
	// Failed means the node concluded it cannot succeed; like Complete,
	// terminal until Reset.
	Failed
	// Waiting means the node has an in-flight async effect (see
	// internal/bark/async) and should be ticked again next pass.
	Waiting
	// WaitingForGas means the node wants to make a billable call but gas
	// has been exhausted; the executor halts the tick pass on this state
	// rather than retrying it.
	WaitingForGas
)

func (s State) String() string {
	switch s {
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case Waiting:
		return "waiting"
	case WaitingForGas:
		return "waiting_for_gas"
	default:
		return "unknown"
	}
}

// Gas is the consumption budget threaded through a tick pass. A nil Gas
// means unlimited: nodes must treat it exactly like Rust's
// Option<&mut i32>, checking for nil before every decrement instead of
// assuming a budget is always present.
type Gas struct {
	remaining int
}

// NewGas constructs a budget with n units available.
func NewGas(n int) *Gas { return &Gas{remaining: n} }

// Remaining reports the units left, or -1 if g is nil (unlimited).
func (g *Gas) Remaining() int {
	if g == nil {
		return -1
	}
	return g.remaining
}

// Spend attempts to deduct n units, reporting false (and leaving the
// budget untouched) if that would take it negative. A nil Gas always
// succeeds.
func (g *Gas) Spend(n int) bool {
	if g == nil {
		return true
	}
	if g.remaining < n {
		return false
	}
	g.remaining -= n
	return true
}

// Node is the interface every catalog entry and wrapper implements.
type Node interface {
	// ResumeWith advances the node by one tick. Implementations that
	// suspend (Waiting/WaitingForGas) must be safe to call again with the
	// same arguments on the next tick; implementations that make a
	// billable call charge its reported usage through rc.SpendGas once the
	// call's result has been harvested, and return WaitingForGas if that
	// charge fails.
	ResumeWith(rc ResumeContext) State
	// Reset clears any in-flight or cached state so the node can be
	// ticked again from scratch, e.g. when a parent sequence restarts a
	// child after a RepeatUntil loop iteration.
	Reset()
}

// ResumeContext bundles the collaborators a node needs to advance: the
// shared controller, the model facade, the tick's gas budget, an audit
// sink, and the node's own path (for audit events) and catalog kind name.
type ResumeContext struct {
	Ctx        context.Context
	Controller *controller.Controller
	Facade     *model.Facade
	Gas        *Gas
	Audit      audit.Sink
	Path       string
	Kind       string
}

// SpendGas charges n units against rc.Gas, falling back to
// model.DefaultGasCost when n is 0 (a backend that didn't report usage).
// It reports false when the charge would take a non-nil budget negative.
func (rc ResumeContext) SpendGas(n int) bool {
	if n <= 0 {
		n = model.DefaultGasCost
	}
	return rc.Gas.Spend(n)
}

// Enter emits an EventNodeEnter through rc.Audit, a convenience so every
// node's ResumeWith doesn't repeat the same three-argument call.
func (rc ResumeContext) Enter() {
	rc.Audit.Enter(rc.Path, rc.Kind)
}

// Exit emits an EventNodeExit for a Complete, Failed or WaitingForGas
// return.
func (rc ResumeContext) Exit(s State) {
	rc.Audit.Exit(rc.Path, rc.Kind, s.String())
}

// Mark emits an EventNodeMark.
func (rc ResumeContext) Mark(label string) {
	rc.Audit.Mark(rc.Path, label)
}

// Data emits an EventNodeData.
func (rc ResumeContext) Data(key string, value any) {
	rc.Audit.Data(rc.Path, key, value)
}

// Child returns a ResumeContext for a child node at the given path suffix,
// sharing every collaborator but carrying the child's own path and kind.
func (rc ResumeContext) Child(pathSuffix, kind string) ResumeContext {
	child := rc
	child.Path = rc.Path + "/" + pathSuffix
	child.Kind = kind
	return child
}

// backend resolves name against rc.Facade, falling back to "default" when
// name is empty — every catalog chat node accepts an optional backend key
// for exactly this reason.
func (rc ResumeContext) backend(name string) (model.ChatBackend, bool) {
	if name == "" {
		name = "default"
	}
	return rc.Facade.Backend(name)
}
