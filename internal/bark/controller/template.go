package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/barktree/bark/internal/bark/values"
)

// loopSentinel is substituted for a placeholder whose expansion would
// recurse into itself, so a malformed or self-referential template
// terminates instead of looping the controller forever.
const loopSentinel = "<<WARNING:LOOP>>"

// maxTemplateDepth bounds legitimate (non-cyclic) nesting, such as a
// default value that itself contains a placeholder referencing another
// default. It is deliberately generous; only true cycles should ever reach
// the sentinel.
const maxTemplateDepth = 64

// ReplaceTemplateVariables expands {{KEY}}, {{KEY|default}}, and
// {{KEY|=OtherKey}} placeholders in text against the controller's text
// slots, recursively expanding the substituted value so a variable's stored
// text may itself contain placeholders. A placeholder is one of:
//
//	{{KEY}}          resolves KEY, empty string if unset
//	{{KEY|default}}  resolves KEY, falling back to the literal default text
//	{{KEY|=OtherKey}} resolves KEY, falling back to OtherKey's resolution
//
// KEY (and OtherKey) go through values.KeyToVariableID, so the four
// reserved names (accumulator, loop_value, last_output, pre_embed) work
// the same as user-chosen names. A placeholder participating in a
// resolution cycle expands to loopSentinel rather than recursing forever;
// this cannot be implemented with text/template, which has no notion of a
// partially-expanded, self-referential input driving its own expansion.
func (c *Controller) ReplaceTemplateVariables(text string) (string, error) {
	return c.expand(text, map[values.VariableID]bool{}, 0)
}

func (c *Controller) expand(text string, active map[values.VariableID]bool, depth int) (string, error) {
	if depth > maxTemplateDepth {
		return loopSentinel, nil
	}

	var out strings.Builder
	i := 0
	for i < len(text) {
		open := strings.Index(text[i:], "{{")
		if open < 0 {
			out.WriteString(text[i:])
			break
		}
		out.WriteString(text[i : i+open])
		start := i + open + 2
		close := strings.Index(text[start:], "}}")
		if close < 0 {
			// Unterminated placeholder: emit verbatim and stop scanning.
			out.WriteString(text[i+open:])
			break
		}
		body := text[start : start+close]
		resolved, err := c.expandPlaceholder(body, active, depth)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
		i = start + close + 2
	}
	return out.String(), nil
}

// expandPlaceholder resolves the body of a single {{...}} placeholder,
// dispatching on whether it carries a "|default" or "|=OtherKey" clause.
func (c *Controller) expandPlaceholder(body string, active map[values.VariableID]bool, depth int) (string, error) {
	key := body
	var fallback *string
	var fallbackIsKey bool

	if idx := strings.Index(body, "|"); idx >= 0 {
		key = body[:idx]
		clause := body[idx+1:]
		if strings.HasPrefix(clause, "=") {
			fallbackIsKey = true
			alt := clause[1:]
			fallback = &alt
		} else {
			fallback = &clause
		}
	}

	id := values.KeyToVariableID(strings.TrimSpace(key))

	if active[id] {
		return loopSentinel, nil
	}

	raw, ok := c.texts[id]
	var expanded string
	if ok {
		var err error
		expanded, err = c.expand(raw, withActive(active, id), depth+1)
		if err != nil {
			return "", err
		}
	}

	if !ok || expanded == "" {
		if fallback == nil {
			return "", nil
		}
		if !fallbackIsKey {
			return c.expand(*fallback, active, depth+1)
		}
		altID := values.KeyToVariableID(strings.TrimSpace(*fallback))
		if active[altID] {
			return loopSentinel, nil
		}
		altRaw, ok := c.texts[altID]
		if !ok {
			return "", nil
		}
		nextActive := withActive(active, altID)
		return c.expand(altRaw, nextActive, depth+1)
	}

	return expanded, nil
}

func withActive(active map[values.VariableID]bool, id values.VariableID) map[values.VariableID]bool {
	next := make(map[values.VariableID]bool, len(active)+1)
	for k := range active {
		next[k] = true
	}
	next[id] = true
	return next
}

// loadTemplateFile reads a prompt template from disk. A ".json" extension
// decodes a []values.MessageValue (see values.UnmarshalMessageValues); any
// other extension is read as line-oriented text, where a line beginning
// with "system:", "user:", "assistant:", or "tool:" starts a new message of
// that role, and any other non-blank line is a user line: it is appended to
// the current message when that is a user message and otherwise starts a
// new user message. Blank lines stay with the current message. Each
// message is finally expanded through ReplaceTemplateVariables.
func (c *Controller) loadTemplateFile(path string) ([]values.ChatMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controller: load template file %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		msgVals, err := values.UnmarshalMessageValues(data)
		if err != nil {
			return nil, fmt.Errorf("controller: decode template file %s: %w", path, err)
		}
		out := make([]values.ChatMessage, 0, len(msgVals))
		for _, mv := range msgVals {
			m, err := c.GetMessage(mv)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}

	return c.parseLineTemplate(string(data))
}

func (c *Controller) parseLineTemplate(content string) ([]values.ChatMessage, error) {
	var out []values.ChatMessage
	var role values.Role = values.RoleUser
	var buf strings.Builder

	flush := func() error {
		if buf.Len() == 0 {
			return nil
		}
		expanded, err := c.ReplaceTemplateVariables(strings.TrimRight(buf.String(), "\n"))
		if err != nil {
			return err
		}
		out = append(out, values.ChatMessage{Role: role, Content: values.ContentText{Text: expanded}})
		buf.Reset()
		return nil
	}

	for _, line := range strings.Split(content, "\n") {
		if r, rest, ok := roleLine(line); ok {
			if err := flush(); err != nil {
				return nil, err
			}
			role = r
			if rest != "" {
				buf.WriteString(rest)
				buf.WriteString("\n")
			}
			continue
		}
		if role != values.RoleUser && strings.TrimSpace(line) != "" {
			if err := flush(); err != nil {
				return nil, err
			}
			role = values.RoleUser
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func roleLine(line string) (values.Role, string, bool) {
	prefixes := map[string]values.Role{
		"system:":    values.RoleSystem,
		"user:":      values.RoleUser,
		"assistant:": values.RoleAssistant,
		"tool:":      values.RoleTool,
	}
	for p, role := range prefixes {
		if strings.HasPrefix(line, p) {
			return role, strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", "", false
}
