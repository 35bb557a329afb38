package node

import (
	"context"
	"fmt"

	"github.com/barktree/bark/internal/bark/async"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// Prompt submits the messages currently held in Slot to a chat backend,
// appends the assistant's reply to Slot, and mirrors the outcome into
// LastOutput both as text and as the whole updated prompt. An empty Slot
// fails rather than submitting a vacuous completion.
type Prompt struct {
	Backend string
	Slot    values.VariableID

	handle *async.Handle[model.Response]
}

func (n *Prompt) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.handle == nil {
		messages, ok := rc.Controller.RawPrompt(n.Slot)
		if !ok || len(messages) == 0 {
			rc.Mark("prompt: empty slot")
			rc.Exit(Failed)
			return Failed
		}
		backend, ok := rc.backend(n.Backend)
		if !ok {
			rc.Mark(fmt.Sprintf("prompt: unknown backend %q", n.Backend))
			rc.Exit(Failed)
			return Failed
		}
		n.handle = async.Spawn(rc.Ctx, func(ctx context.Context) (model.Response, error) {
			return backend.Chat(ctx, messages, nil)
		})
		return Waiting
	}

	resp, err, ok := n.handle.TryPoll()
	if !ok {
		return Waiting
	}
	n.handle = nil
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}

	if !rc.SpendGas(resp.Usage) {
		rc.Exit(WaitingForGas)
		return WaitingForGas
	}

	rc.Controller.AppendPrompt(n.Slot, values.ChatMessage{Role: values.RoleAssistant, Content: values.ContentText{Text: resp.Text}})
	rc.Controller.SetText(values.LastOutput, resp.Text)
	updated, _ := rc.Controller.RawPrompt(n.Slot)
	rc.Controller.SetPrompt(values.LastOutput, updated)

	rc.Exit(Complete)
	return Complete
}

func (n *Prompt) Reset() {
	if n.handle != nil {
		n.handle.Drop()
		n.handle = nil
	}
}

// MatchResponse behaves exactly like Prompt, but on completion evaluates
// Matcher against the response text and reports Complete/Failed from that
// instead of always succeeding.
type MatchResponse struct {
	Backend string
	Slot    values.VariableID
	Matcher values.TextMatcher

	inner Prompt
}

func (n *MatchResponse) ResumeWith(rc ResumeContext) State {
	n.inner.Backend = n.Backend
	n.inner.Slot = n.Slot

	state := n.inner.ResumeWith(rc.Child("match_response", "prompt"))
	if state != Complete {
		return state
	}

	text, _ := rc.Controller.RawText(values.LastOutput)
	if rc.Controller.TextMatches(text, n.Matcher) {
		rc.Exit(Complete)
		return Complete
	}
	rc.Exit(Failed)
	return Failed
}

func (n *MatchResponse) Reset() {
	n.inner.Reset()
}
