// Package wrapper holds the tree's decorator/composite nodes: ones that own
// a child (or two) and drive it repeatedly across several logical
// iterations, rather than resolving a single value and finishing. Kept
// separate from internal/bark/node because these compose node.Node values
// instead of talking to the model facade or controller directly for their
// own leaf work (Knn is the one exception, and it does so by embedding a
// node.GetEmbedding rather than duplicating that logic).
package wrapper

import (
	"fmt"
	"strings"

	"github.com/barktree/bark/internal/bark/node"
	"github.com/barktree/bark/internal/bark/values"
)

// Interrogate resolves Text once, splits it on newlines, and for each
// non-empty line resets Child, writes the line to values.LoopValue, and
// ticks Child to completion before advancing to the next line.
type Interrogate struct {
	Text  values.TextValue
	Child node.Node

	lines   []string
	index   int
	started bool
}

func (n *Interrogate) ResumeWith(rc node.ResumeContext) node.State {
	rc.Enter()

	if !n.started {
		text, err := rc.Controller.GetText(n.Text)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(node.Failed)
			return node.Failed
		}
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) != "" {
				n.lines = append(n.lines, line)
			}
		}
		n.started = true
		n.index = 0
		if len(n.lines) > 0 {
			rc.Controller.SetText(values.LoopValue, n.lines[0])
		}
	}

	for n.index < len(n.lines) {
		state := n.Child.ResumeWith(rc.Child(fmt.Sprintf("line[%d]", n.index), "interrogate_child"))
		switch state {
		case node.Waiting:
			return state
		case node.Failed, node.WaitingForGas:
			rc.Exit(state)
			return state
		case node.Complete:
			n.index++
			n.Child.Reset()
			if n.index < len(n.lines) {
				rc.Controller.SetText(values.LoopValue, n.lines[n.index])
			}
		}
	}

	rc.Exit(node.Complete)
	return node.Complete
}

func (n *Interrogate) Reset() {
	n.lines = nil
	n.index = 0
	n.started = false
	n.Child.Reset()
}

// Knn embeds CompareText, queries DB for its K nearest texts, then for
// each result resets Child, writes the result text to values.LoopValue,
// and ticks Child to completion. An empty query result fails.
type Knn struct {
	DB          string
	CompareText values.TextValue
	K           int
	Child       node.Node

	embed   node.GetEmbedding
	phase   int
	results []string
	index   int
}

func (n *Knn) ResumeWith(rc node.ResumeContext) node.State {
	rc.Enter()

	if n.phase == 0 {
		n.embed.Text = n.CompareText
		n.embed.Target = values.Accumulator
		n.phase = 1
	}

	if n.phase == 1 {
		state := n.embed.ResumeWith(rc.Child("embed", "get_embedding"))
		if state != node.Complete {
			return state
		}
		n.phase = 2
	}

	if n.phase == 2 {
		db, ok := rc.Facade.VectorDB(n.DB)
		if !ok {
			rc.Mark(fmt.Sprintf("knn: unknown db %q", n.DB))
			rc.Exit(node.Failed)
			return node.Failed
		}
		vec, _ := rc.Controller.Embedding(values.Accumulator)
		k := n.K
		if k <= 0 {
			k = 1
		}
		matches, err := db.PullBestScored(rc.Ctx, vec, k)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(node.Failed)
			return node.Failed
		}
		if len(matches) == 0 {
			rc.Mark("knn: empty result")
			rc.Exit(node.Failed)
			return node.Failed
		}
		for _, m := range matches {
			n.results = append(n.results, m.Text)
		}
		n.index = 0
		rc.Controller.SetText(values.LoopValue, n.results[0])
		n.phase = 3
	}

	for n.index < len(n.results) {
		state := n.Child.ResumeWith(rc.Child(fmt.Sprintf("result[%d]", n.index), "knn_child"))
		switch state {
		case node.Waiting:
			return state
		case node.Failed, node.WaitingForGas:
			rc.Exit(state)
			return state
		case node.Complete:
			n.index++
			n.Child.Reset()
			if n.index < len(n.results) {
				rc.Controller.SetText(values.LoopValue, n.results[n.index])
			}
		}
	}

	rc.Exit(node.Complete)
	return node.Complete
}

func (n *Knn) Reset() {
	n.embed.Reset()
	n.phase = 0
	n.results = nil
	n.index = 0
	n.Child.Reset()
}

// Repl loops forever: prints Prompt (if non-empty), reads one line of
// standard input, matches it case-insensitively against Alternatives, and
// runs the child at the matching position to completion before
// re-entering the loop. Empty input or no match fails.
type Repl struct {
	Prompt       values.TextValue
	Alternatives []string
	Children     []node.Node

	active      node.Node
	activeIndex int
}

func (n *Repl) ResumeWith(rc node.ResumeContext) node.State {
	rc.Enter()

	for {
		if n.active != nil {
			state := n.active.ResumeWith(rc.Child(fmt.Sprintf("choice[%d]", n.activeIndex), "repl_child"))
			switch state {
			case node.Waiting:
				return state
			case node.Failed, node.WaitingForGas:
				rc.Exit(state)
				return state
			case node.Complete:
				n.active.Reset()
				n.active = nil
				continue
			}
		}

		prompt := &node.PrintLine{Value: n.Prompt}
		if text, err := rc.Controller.GetText(n.Prompt); err == nil && text != "" {
			prompt.ResumeWith(rc.Child("prompt", "print_line"))
		}

		line := &node.ReadStdio{SingleLine: true, Target: values.Accumulator}
		if state := line.ResumeWith(rc.Child("read", "read_stdio")); state != node.Complete {
			rc.Exit(state)
			return state
		}
		input, _ := rc.Controller.RawText(values.Accumulator)
		input = strings.TrimSpace(input)
		if input == "" {
			rc.Mark("repl: empty input")
			rc.Exit(node.Failed)
			return node.Failed
		}

		idx := matchAlternative(input, n.Alternatives)
		if idx < 0 || idx >= len(n.Children) {
			rc.Mark(fmt.Sprintf("repl: no match for %q", input))
			rc.Exit(node.Failed)
			return node.Failed
		}
		n.active = n.Children[idx]
		n.activeIndex = idx
	}
}

func matchAlternative(input string, alternatives []string) int {
	for i, alt := range alternatives {
		if strings.EqualFold(input, alt) {
			return i
		}
	}
	return -1
}

func (n *Repl) Reset() {
	n.active = nil
	for _, c := range n.Children {
		c.Reset()
	}
}

// RepeatUntil ticks Condition each iteration; Complete ends the loop
// successfully, Failed ticks Action instead, and a completed Action loops
// back to Condition. A Waiting or WaitingForGas result from either child
// propagates immediately.
type RepeatUntil struct {
	Condition node.Node
	Action    node.Node

	inAction bool
}

func (n *RepeatUntil) ResumeWith(rc node.ResumeContext) node.State {
	rc.Enter()

	for {
		if !n.inAction {
			state := n.Condition.ResumeWith(rc.Child("condition", "repeat_until_condition"))
			switch state {
			case node.Complete:
				n.Condition.Reset()
				rc.Exit(node.Complete)
				return node.Complete
			case node.Failed:
				n.Condition.Reset()
				n.inAction = true
				continue
			case node.WaitingForGas:
				rc.Exit(state)
				return state
			default:
				return state
			}
		}

		state := n.Action.ResumeWith(rc.Child("action", "repeat_until_action"))
		switch state {
		case node.Complete:
			n.Action.Reset()
			n.inAction = false
			continue
		case node.WaitingForGas:
			rc.Exit(state)
			return state
		default:
			return state
		}
	}
}

func (n *RepeatUntil) Reset() {
	n.Condition.Reset()
	n.Action.Reset()
	n.inAction = false
}
