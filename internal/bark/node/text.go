package node

import (
	"encoding/json"
	"fmt"

	"github.com/barktree/bark/internal/bark/values"
)

// SetText writes the resolution of Value into the controller's text slot
// named Target. Pure and synchronous: it never suspends.
type SetText struct {
	Target values.VariableID
	Value  values.TextValue
}

func (n *SetText) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	text, err := rc.Controller.GetText(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, text)
	rc.Exit(Complete)
	return Complete
}

func (n *SetText) Reset() {}

// SetTemplate stores the resolution of Value as a raw template string under
// Target, so later GetTemplate calls expand it against whatever the
// controller holds at that time, not at SetTemplate time.
type SetTemplate struct {
	Target values.VariableID
	Value  values.TextValue
}

func (n *SetTemplate) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	text, err := rc.Controller.GetText(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetTemplate(n.Target, text)
	rc.Exit(Complete)
	return Complete
}

func (n *SetTemplate) Reset() {}

// StartPrompt replaces the named prompt slot wholesale with the resolution
// of Value.
type StartPrompt struct {
	Target values.VariableID
	Value  values.PromptValue
}

func (n *StartPrompt) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	msgs, err := rc.Controller.GetPrompt(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetPrompt(n.Target, msgs)
	rc.Exit(Complete)
	return Complete
}

func (n *StartPrompt) Reset() {}

// ExtendPrompt appends every message the resolution of Value produces onto
// the named prompt slot, creating it if absent.
type ExtendPrompt struct {
	Target values.VariableID
	Value  values.PromptValue
}

func (n *ExtendPrompt) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	msgs, err := rc.Controller.GetPrompt(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	for _, m := range msgs {
		rc.Controller.AppendPrompt(n.Target, m)
	}
	rc.Exit(Complete)
	return Complete
}

func (n *ExtendPrompt) Reset() {}

// ReplaceSystemPrompt drops every System-role message from the named
// prompt slot and prepends the messages the resolution of Value produces.
type ReplaceSystemPrompt struct {
	Target values.VariableID
	Value  values.PromptValue
}

func (n *ReplaceSystemPrompt) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	if err := rc.Controller.ReplaceSystemPrompt(n.Target, n.Value); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Exit(Complete)
	return Complete
}

func (n *ReplaceSystemPrompt) Reset() {}

// Unescape JSON-decodes the named text slot's current value in place,
// failing if it is not a valid JSON string.
type Unescape struct {
	Target values.VariableID
}

func (n *Unescape) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	raw, ok := rc.Controller.RawText(n.Target)
	if !ok {
		rc.Mark("unescape: no value set")
		rc.Exit(Failed)
		return Failed
	}
	var decoded string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		rc.Mark(fmt.Sprintf("unescape: %v", err))
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, decoded)
	rc.Exit(Complete)
	return Complete
}

func (n *Unescape) Reset() {}
