package node

import "fmt"

// Loader materializes a tree file into an executable Node. It is injected
// rather than imported directly, because the package that knows how to
// parse a tree descriptor (internal/bark/tree) must itself import node to
// build node instances — node cannot import tree without a cycle. The tree
// package supplies the concrete Loader when it constructs a SubtreeRef.
type Loader interface {
	Load(path string) (Node, error)
}

// SubtreeRef starts uninitialized, holding only a name. On its first tick
// it resolves that name against the facade's tree root, loads and
// materializes the referenced tree file through Loader, and forwards every
// tick to the resulting child from then on.
type SubtreeRef struct {
	Name   string
	Loader Loader

	child Node
}

func (n *SubtreeRef) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.child == nil {
		path := n.Name
		if rc.Facade.TreeRoot != "" {
			path = rc.Facade.TreeRoot + "/" + n.Name
		}
		child, err := n.Loader.Load(path)
		if err != nil {
			rc.Mark(fmt.Sprintf("subtree_ref: %v", err))
			rc.Exit(Failed)
			return Failed
		}
		n.child = child
	}

	state := n.child.ResumeWith(rc.Child(n.Name, "subtree"))
	if state == Complete || state == Failed {
		rc.Exit(state)
	}
	return state
}

// Reset resets the already-materialized child in place rather than
// discarding it, so a wrapper that resets this node once per loop
// iteration (Interrogate, Knn) doesn't reload the same tree file from disk
// on every pass. A node that has never ticked has no child yet and stays
// uninitialized.
func (n *SubtreeRef) Reset() {
	if n.child != nil {
		n.child.Reset()
	}
}
