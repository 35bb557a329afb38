package node

import "strconv"

// Composite nodes are the "sequence, selector, etc., provided by the
// underlying behavior-tree library" the tree file format names alongside
// leaves and wrappers. Neither the teacher nor any other repo in the
// example pack depends on a behavior-tree library, so these three are
// hand-rolled here rather than imported — see DESIGN.md. Their
// child-advance-on-terminal-state loop follows the same shape as
// wrapper.Interrogate/wrapper.Repl: track an index, tick the child at that
// index, and only move on once it leaves Waiting/WaitingForGas.

// Sequence ticks its children in order, stopping at the first child that
// is not Complete. A Waiting or WaitingForGas child is re-ticked next pass
// without resetting anything; a Failed child fails the whole sequence.
// Reaching the end of Children with every child Complete completes the
// sequence.
type Sequence struct {
	Children []Node

	index int
}

func (n *Sequence) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	for n.index < len(n.Children) {
		child := n.Children[n.index]
		crc := rc.Child(childPath(n.index), "Sequence.child")
		state := child.ResumeWith(crc)
		switch state {
		case Complete:
			n.index++
			continue
		case Failed:
			rc.Exit(Failed)
			return Failed
		default:
			return state
		}
	}
	rc.Exit(Complete)
	return Complete
}

func (n *Sequence) Reset() {
	n.index = 0
	for _, c := range n.Children {
		c.Reset()
	}
}

// Selector ticks its children in order, stopping at the first child that
// is not Failed. A Complete child completes the selector immediately;
// exhausting every child without one succeeding fails the selector.
type Selector struct {
	Children []Node

	index int
}

func (n *Selector) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	for n.index < len(n.Children) {
		child := n.Children[n.index]
		crc := rc.Child(childPath(n.index), "Selector.child")
		state := child.ResumeWith(crc)
		switch state {
		case Failed:
			n.index++
			continue
		case Complete:
			rc.Exit(Complete)
			return Complete
		default:
			return state
		}
	}
	rc.Exit(Failed)
	return Failed
}

func (n *Selector) Reset() {
	n.index = 0
	for _, c := range n.Children {
		c.Reset()
	}
}

// Parallel ticks every child every pass regardless of the others'
// progress, completing once all children have reached Complete and
// failing as soon as any child reaches Failed. Children already terminal
// are not re-ticked.
type Parallel struct {
	Children []Node

	done []State
}

func (n *Parallel) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	if n.done == nil {
		n.done = make([]State, len(n.Children))
		for i := range n.done {
			n.done[i] = Waiting
		}
	}

	anyWaiting := false
	anyGas := false
	for i, child := range n.done {
		if child == Complete || child == Failed {
			continue
		}
		crc := rc.Child(childPath(i), "Parallel.child")
		state := n.Children[i].ResumeWith(crc)
		n.done[i] = state
		switch state {
		case Failed:
			rc.Exit(Failed)
			return Failed
		case Waiting:
			anyWaiting = true
		case WaitingForGas:
			anyGas = true
		}
	}

	if anyGas {
		return WaitingForGas
	}
	if anyWaiting {
		return Waiting
	}
	rc.Exit(Complete)
	return Complete
}

func (n *Parallel) Reset() {
	n.done = nil
	for _, c := range n.Children {
		c.Reset()
	}
}

func childPath(i int) string {
	return "child[" + strconv.Itoa(i) + "]"
}
