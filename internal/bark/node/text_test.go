package node

import (
	"context"
	"testing"

	"github.com/barktree/bark/internal/bark/audit"
	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

func newTestRC(c *controller.Controller) ResumeContext {
	return ResumeContext{
		Ctx:        context.Background(),
		Controller: c,
		Facade:     &model.Facade{},
		Gas:        nil,
		Audit:      audit.NopSink{},
		Path:       "root",
		Kind:       "test",
	}
}

func TestSetTextWritesResolvedValue(t *testing.T) {
	c := controller.New("")
	n := &SetText{Target: values.Named("greeting"), Value: values.TextSimple{Value: "hi"}}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	got, _ := c.RawText(values.Named("greeting"))
	if got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestSetTemplateDoesNotExpandEagerly(t *testing.T) {
	c := controller.New("")
	c.SetText(values.Named("name"), "world")
	n := &SetTemplate{Target: values.Named("greeting"), Value: values.TextSimple{Value: "hello {{name}}"}}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	expanded, err := c.GetTemplate(values.Named("greeting"))
	if err != nil {
		t.Fatal(err)
	}
	if expanded != "hello world" {
		t.Fatalf("got %q, want %q", expanded, "hello world")
	}
}

func TestStartPromptReplacesSlotWholesale(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "stale"}}})
	n := &StartPrompt{Target: values.Named("p"), Value: values.PromptQuick{Text: "fresh"}}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	msgs, _ := c.RawPrompt(values.Named("p"))
	if len(msgs) != 1 || msgs[0].Text() != "fresh" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestExtendPromptAppends(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "first"}}})
	n := &ExtendPrompt{Target: values.Named("p"), Value: values.PromptQuick{Text: "second"}}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	msgs, _ := c.RawPrompt(values.Named("p"))
	if len(msgs) != 2 || msgs[1].Text() != "second" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestReplaceSystemPromptInsertsWhenAbsent(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}}})
	value := values.PromptChat{Messages: []values.MessageValue{
		values.MessageLiteral{Role: values.RoleSystem, Text: values.TextSimple{Value: "be nice"}},
	}}
	n := &ReplaceSystemPrompt{Target: values.Named("p"), Value: value}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	msgs, _ := c.RawPrompt(values.Named("p"))
	if len(msgs) != 2 || msgs[0].Role != values.RoleSystem || msgs[0].Text() != "be nice" {
		t.Fatalf("got %+v", msgs)
	}
	if msgs[1].Role != values.RoleUser || msgs[1].Text() != "hi" {
		t.Fatalf("preserved message should keep its role and text: %+v", msgs[1])
	}
}

func TestReplaceSystemPromptDropsAllPriorSystemMessages(t *testing.T) {
	c := controller.New("")
	c.SetPrompt(values.Named("p"), []values.ChatMessage{
		{Role: values.RoleSystem, Content: values.ContentText{Text: "old"}},
		{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}},
	})
	value := values.PromptChat{Messages: []values.MessageValue{
		values.MessageLiteral{Role: values.RoleSystem, Text: values.TextSimple{Value: "new"}},
	}}
	n := &ReplaceSystemPrompt{Target: values.Named("p"), Value: value}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	msgs, _ := c.RawPrompt(values.Named("p"))
	if len(msgs) != 2 || msgs[0].Text() != "new" || msgs[1].Text() != "hi" {
		t.Fatalf("got %+v, want [new, hi] with old system message dropped", msgs)
	}
}

func TestUnescapeDecodesJSONString(t *testing.T) {
	c := controller.New("")
	c.SetText(values.Named("raw"), `"line one\nline two"`)
	n := &Unescape{Target: values.Named("raw")}
	if state := n.ResumeWith(newTestRC(c)); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	got, _ := c.RawText(values.Named("raw"))
	if got != "line one\nline two" {
		t.Fatalf("got %q", got)
	}
}

func TestUnescapeFailsOnInvalidJSON(t *testing.T) {
	c := controller.New("")
	c.SetText(values.Named("raw"), `not json`)
	n := &Unescape{Target: values.Named("raw")}
	if state := n.ResumeWith(newTestRC(c)); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}
