package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

type fakeChatBackend struct {
	resp model.Response
	err  error
}

func (b *fakeChatBackend) Chat(ctx context.Context, messages []values.ChatMessage, tools []model.ToolSchema) (model.Response, error) {
	return b.resp, b.err
}

func tickUntilTerminal(t *testing.T, n Node, rc ResumeContext) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		state := n.ResumeWith(rc)
		switch state {
		case Complete, Failed, WaitingForGas:
			return state
		case Waiting:
			select {
			case <-deadline:
				t.Fatal("timed out waiting for terminal state")
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func TestPromptAppendsAssistantReplyAndLastOutput(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{resp: model.Response{Kind: model.ResponseText, Text: "hello there"}}}

	n := &Prompt{Slot: values.Named("p")}
	if state := tickUntilTerminal(t, n, rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}

	msgs, _ := c.RawPrompt(values.Named("p"))
	if len(msgs) != 2 || msgs[1].Role != values.RoleAssistant || msgs[1].Text() != "hello there" {
		t.Fatalf("got %+v", msgs)
	}
	lastText, _ := c.RawText(values.LastOutput)
	if lastText != "hello there" {
		t.Fatalf("got %q", lastText)
	}
}

func TestPromptFailsOnEmptySlot(t *testing.T) {
	c := controller.New("")
	rc := newTestRC(c)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{}}
	n := &Prompt{Slot: values.Named("p")}
	if state := n.ResumeWith(rc); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}

func TestPromptFailsOnUnknownBackend(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	n := &Prompt{Slot: values.Named("p"), Backend: "nonexistent"}
	if state := n.ResumeWith(rc); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}

func TestPromptPropagatesBackendError(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{err: errors.New("boom")}}
	n := &Prompt{Slot: values.Named("p")}
	if state := tickUntilTerminal(t, n, rc); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}

func TestPromptReturnsWaitingForGasWhenExhausted(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	rc.Gas = NewGas(10)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{resp: model.Response{Kind: model.ResponseText, Text: "hello", Usage: 500}}}
	n := &Prompt{Slot: values.Named("p")}
	if state := tickUntilTerminal(t, n, rc); state != WaitingForGas {
		t.Fatalf("got %v, want WaitingForGas", state)
	}
}

func TestMatchResponseEvaluatesMatcher(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{resp: model.Response{Kind: model.ResponseText, Text: "YES"}}}

	n := &MatchResponse{Slot: values.Named("p"), Matcher: values.MatchExact{Value: "yes"}}
	if state := tickUntilTerminal(t, n, rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
}

func TestMatchResponseFailsWhenMatcherFalse(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	rc := newTestRC(c)
	rc.Facade.Backends = map[string]model.ChatBackend{"default": &fakeChatBackend{resp: model.Response{Kind: model.ResponseText, Text: "no way"}}}

	n := &MatchResponse{Slot: values.Named("p"), Matcher: values.MatchExact{Value: "yes"}}
	if state := tickUntilTerminal(t, n, rc); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}
