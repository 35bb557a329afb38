package node

import (
	"context"
	"fmt"

	"github.com/barktree/bark/internal/bark/async"
	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// Agent runs the chat/tool-call interleaving loop to completion inside a
// single async task, harvested like any other effect. Adapted from, and
// replacing the domain semantics of, the teacher's internal/agent/loop.go
// AgenticLoop: its iteration/tool-dispatch state-machine shape is kept
// (chat, inspect for tool calls, dispatch each serially, feed results back,
// repeat until a plain-text reply arrives); its session/job/approval-policy
// plumbing is dropped since a tree owns iteration limits through gas, not a
// MaxIterations counter.
type Agent struct {
	Backend    string
	Slot       values.VariableID
	ToolFilter values.TextValue

	handle *async.Handle[agentLoopResult]
}

type agentLoopResult struct {
	text   string
	prompt []values.ChatMessage
	usage  int
	failed bool
}

func (n *Agent) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.handle == nil {
		messages, ok := rc.Controller.RawPrompt(n.Slot)
		if !ok || len(messages) == 0 {
			rc.Mark("agent: empty slot")
			rc.Exit(Failed)
			return Failed
		}
		backend, ok := rc.backend(n.Backend)
		if !ok {
			rc.Mark(fmt.Sprintf("agent: unknown backend %q", n.Backend))
			rc.Exit(Failed)
			return Failed
		}
		filter, err := rc.Controller.GetText(n.ToolFilter)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(Failed)
			return Failed
		}

		initial := make([]values.ChatMessage, len(messages))
		copy(initial, messages)
		tools := rc.Facade.Tools
		stripThoughts := rc.Facade.StripThoughtsInChat

		n.handle = async.Spawn(rc.Ctx, func(ctx context.Context) (agentLoopResult, error) {
			return runAgentLoop(ctx, backend, tools, filter, stripThoughts, initial)
		})
		return Waiting
	}

	result, err, ok := n.handle.TryPoll()
	if !ok {
		return Waiting
	}
	n.handle = nil

	if !rc.SpendGas(result.usage) {
		rc.Exit(WaitingForGas)
		return WaitingForGas
	}

	rc.Controller.SetPrompt(n.Slot, result.prompt)

	if err != nil || result.failed {
		if err != nil {
			rc.Mark(err.Error())
		}
		rc.Exit(Failed)
		return Failed
	}

	rc.Controller.SetText(values.LastOutput, result.text)
	rc.Controller.SetPrompt(values.LastOutput, result.prompt)
	rc.Exit(Complete)
	return Complete
}

func (n *Agent) Reset() {
	if n.handle != nil {
		n.handle.Drop()
		n.handle = nil
	}
}

// runAgentLoop is exactly spec.md §4.5's contract: chat, and on a
// ResponseToolCalls reply dispatch every call serially, feeding each
// result back as a tool message, until a plain-text reply is returned or a
// tool call fails. tools may be nil (no tool caller configured); a loop
// that then receives a tool-call response has no way to satisfy it and
// fails.
func runAgentLoop(ctx context.Context, backend model.ChatBackend, tools model.ToolCaller, filter string, stripThoughts bool, initial []values.ChatMessage) (agentLoopResult, error) {
	prompt := make([]values.ChatMessage, len(initial))
	copy(prompt, initial)
	totalUsage := 0

	for {
		var schemas []model.ToolSchema
		if tools != nil {
			var err error
			schemas, err = tools.Schemas(ctx, filter)
			if err != nil {
				return agentLoopResult{prompt: prompt, usage: totalUsage, failed: true}, err
			}
		}

		resp, err := backend.Chat(ctx, prompt, schemas)
		if err != nil {
			return agentLoopResult{prompt: prompt, usage: totalUsage, failed: true}, err
		}
		totalUsage += resp.Usage

		if resp.Kind == model.ResponseText {
			stored := resp.Text
			if stripThoughts {
				stored = controller.StripThoughts(stored)
			}
			prompt = append(prompt, values.ChatMessage{Role: values.RoleAssistant, Content: values.ContentText{Text: stored}})
			return agentLoopResult{text: resp.Text, prompt: prompt, usage: totalUsage}, nil
		}

		for _, call := range resp.ToolCalls {
			prompt = append(prompt, values.ChatMessage{Role: values.RoleAssistant, Content: values.ContentToolCall{Call: call}})

			if tools == nil {
				err := fmt.Errorf("agent: tool call %q requested but no tool caller is configured", call.Function)
				return agentLoopResult{prompt: prompt, usage: totalUsage, failed: true}, err
			}

			result, err := tools.Call(ctx, call)
			if err != nil {
				prompt = append(prompt, values.ChatMessage{Role: values.RoleTool, Content: values.ContentToolResponse{ID: call.ID, Text: err.Error()}})
				return agentLoopResult{prompt: prompt, usage: totalUsage, failed: true}, err
			}
			prompt = append(prompt, values.ChatMessage{Role: values.RoleTool, Content: values.ContentToolResponse{ID: call.ID, Text: result}})
		}
	}
}
