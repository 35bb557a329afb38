package node

import (
	"testing"

	"github.com/barktree/bark/internal/bark/controller"
)

type fakeLoader struct {
	loads int
	err   error
}

type stubNode struct {
	resets int
}

func (s *stubNode) ResumeWith(rc ResumeContext) State { return Complete }
func (s *stubNode) Reset()                            { s.resets++ }

func (f *fakeLoader) Load(path string) (Node, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return &stubNode{}, nil
}

func TestSubtreeRefLoadsOnceThenForwards(t *testing.T) {
	c := controller.New("")
	rc := newTestRC(c)
	loader := &fakeLoader{}
	n := &SubtreeRef{Name: "child.json", Loader: loader}

	if state := n.ResumeWith(rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	if state := n.ResumeWith(rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	if loader.loads != 1 {
		t.Fatalf("got %d loads, want 1", loader.loads)
	}
}

func TestSubtreeRefResetKeepsChildMaterialized(t *testing.T) {
	c := controller.New("")
	rc := newTestRC(c)
	loader := &fakeLoader{}
	n := &SubtreeRef{Name: "child.json", Loader: loader}

	n.ResumeWith(rc)
	child := n.child.(*stubNode)
	n.Reset()
	if child.resets != 1 {
		t.Fatalf("got %d resets, want 1", child.resets)
	}
	n.ResumeWith(rc)
	if loader.loads != 1 {
		t.Fatalf("got %d loads, want 1 (no reload on reset)", loader.loads)
	}
}
