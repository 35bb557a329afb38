package node

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/barktree/bark/internal/bark/async"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// InteractivePrompt requests Choices completions of the prompt held in Slot
// one at a time (each request starts only after the previous one has been
// harvested; the requests do not run in parallel), best effort, stopping
// early if gas runs out, then drops
// into a synchronous REPL over standard input so an operator can pick one,
// retry, extend the conversation, or branch into a follow-up prompt built
// from the collected choices.
type InteractivePrompt struct {
	Backend string
	Slot    values.VariableID
	Choices int

	attempted int
	collected []string
	pending   *async.Handle[model.Response]
	scanner   *bufio.Scanner
	repl      bool

	// xContext/xRemaining drive the "x" REPL action: spec.md §9 Open
	// Question 1 is resolved as re-prompting len(choices) times using the
	// collected choices as shared context, so the follow-up context text
	// and a countdown are held here across the several ticks that takes.
	xContext   string
	xRemaining int
}

func (n *InteractivePrompt) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	backend, ok := rc.backend(n.Backend)
	if !ok {
		rc.Mark(fmt.Sprintf("interactive_prompt: unknown backend %q", n.Backend))
		rc.Exit(Failed)
		return Failed
	}

	for {
		if !n.repl {
			if n.pending == nil {
				if n.attempted >= n.Choices {
					n.repl = true
					continue
				}
				messages, ok := rc.Controller.RawPrompt(n.Slot)
				if !ok || len(messages) == 0 {
					rc.Mark("interactive_prompt: empty slot")
					rc.Exit(Failed)
					return Failed
				}
				n.attempted++
				n.pending = async.Spawn(rc.Ctx, func(ctx context.Context) (model.Response, error) {
					return backend.Chat(ctx, messages, nil)
				})
				return Waiting
			}
			resp, err, polled := n.pending.TryPoll()
			if !polled {
				return Waiting
			}
			n.pending = nil
			if err == nil {
				if !rc.SpendGas(resp.Usage) {
					n.repl = true
					continue
				}
				n.collected = append(n.collected, resp.Text)
			}
			continue
		}

		if n.pending != nil {
			resp, err, polled := n.pending.TryPoll()
			if !polled {
				return Waiting
			}
			n.pending = nil
			if err == nil {
				if !rc.SpendGas(resp.Usage) {
					rc.Exit(WaitingForGas)
					return WaitingForGas
				}
				n.collected = append(n.collected, resp.Text)
			}
			continue
		}

		if n.xRemaining > 0 {
			followUp := []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: n.xContext}}}
			n.xRemaining--
			n.pending = async.Spawn(rc.Ctx, func(ctx context.Context) (model.Response, error) {
				return backend.Chat(ctx, followUp, nil)
			})
			return Waiting
		}

		if len(n.collected) == 0 {
			rc.Mark("interactive_prompt: no choices produced")
			rc.Exit(Failed)
			return Failed
		}

		n.printChoices()
		line, eof := n.readLine()
		if eof {
			rc.Exit(Failed)
			return Failed
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "q":
			rc.Exit(Failed)
			return Failed

		case line == "r":
			messages, ok := rc.Controller.RawPrompt(n.Slot)
			if !ok || len(messages) == 0 {
				rc.Mark("interactive_prompt: empty slot")
				rc.Exit(Failed)
				return Failed
			}
			n.pending = async.Spawn(rc.Ctx, func(ctx context.Context) (model.Response, error) {
				return backend.Chat(ctx, messages, nil)
			})
			return Waiting

		case line == "e":
			extra, eof := n.readLine()
			if eof {
				rc.Exit(Failed)
				return Failed
			}
			messages, ok := rc.Controller.RawPrompt(n.Slot)
			if !ok || len(messages) == 0 {
				rc.Mark("interactive_prompt: empty slot")
				rc.Exit(Failed)
				return Failed
			}
			extendLastUserMessage(messages, extra)
			rc.Controller.SetPrompt(n.Slot, messages)
			n.pending = async.Spawn(rc.Ctx, func(ctx context.Context) (model.Response, error) {
				return backend.Chat(ctx, messages, nil)
			})
			return Waiting

		case line == "x":
			n.xContext = strings.Join(n.collected, "\n\n")
			n.xRemaining = len(n.collected)
			continue

		default:
			idx, err := strconv.Atoi(line)
			if err != nil || idx < 1 || idx > len(n.collected) {
				fmt.Fprintln(os.Stdout, "invalid choice")
				continue
			}
			chosen := n.collected[idx-1]
			rc.Controller.AppendPrompt(n.Slot, values.ChatMessage{Role: values.RoleAssistant, Content: values.ContentText{Text: chosen}})
			rc.Controller.SetText(values.LastOutput, chosen)
			updated, _ := rc.Controller.RawPrompt(n.Slot)
			rc.Controller.SetPrompt(values.LastOutput, updated)
			rc.Exit(Complete)
			return Complete
		}
	}
}

func (n *InteractivePrompt) printChoices() {
	for i, c := range n.collected {
		fmt.Fprintf(os.Stdout, "[%d] %s\n", i+1, c)
	}
	fmt.Fprint(os.Stdout, "q)uit r)etry e)xtend x)follow-up or pick a number: ")
}

func (n *InteractivePrompt) readLine() (string, bool) {
	if n.scanner == nil {
		n.scanner = bufio.NewScanner(os.Stdin)
	}
	if !n.scanner.Scan() {
		return "", true
	}
	return n.scanner.Text(), false
}

func extendLastUserMessage(messages []values.ChatMessage, extra string) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != values.RoleUser {
			continue
		}
		text, ok := messages[i].Content.(values.ContentText)
		if !ok {
			return
		}
		messages[i].Content = values.ContentText{Text: text.Text + "\n" + extra}
		return
	}
}

func (n *InteractivePrompt) Reset() {
	if n.pending != nil {
		n.pending.Drop()
		n.pending = nil
	}
	n.attempted = 0
	n.collected = nil
	n.repl = false
	n.scanner = nil
	n.xContext = ""
	n.xRemaining = 0
}
