// Package controller holds the mutable state a running tree threads through
// every tick: named text slots, embedding slots, prompt histories, and
// template definitions, each keyed by a values.VariableID. Nodes never hold
// this state themselves; they resolve values.TextValue/PromptValue/
// MessageValue instances against a *Controller at tick time, so the same
// node descriptor can run against many independent controllers (one per
// tree instance) without aliasing.
//
// This mirrors the teacher's internal/templates.VariableContext pattern
// (a flat map threaded through rendering) but keyed by the closed
// values.VariableID union instead of free-form strings, and split across
// four maps because the four slot kinds (text, embedding, prompt, template)
// have independent lifetimes and default values.
package controller

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/barktree/bark/internal/bark/values"
)

// foldCase normalizes a string for MatchExact comparison. Using
// cases.Fold() instead of strings.EqualFold matches casing rules beyond
// simple ASCII (e.g. Turkish dotless i, German ß), which is the reason
// this dependency is in the teacher's internal/templates/variables.go in
// the first place.
var foldCase = cases.Fold()

// Controller is the per-tree-instance variable store. The zero value is not
// usable; construct with New.
type Controller struct {
	texts      map[values.VariableID]string
	embeddings map[values.VariableID][]float32
	prompts    map[values.VariableID][]values.ChatMessage
	templates  map[values.VariableID]string
}

// New returns an empty Controller with pre_embed seeded to defaultPreEmbed,
// matching the spec's requirement that PreEmbed always resolves to
// something even before any node writes to it.
func New(defaultPreEmbed string) *Controller {
	c := &Controller{
		texts:      make(map[values.VariableID]string),
		embeddings: make(map[values.VariableID][]float32),
		prompts:    make(map[values.VariableID][]values.ChatMessage),
		templates:  make(map[values.VariableID]string),
	}
	c.texts[values.PreEmbed] = defaultPreEmbed
	return c
}

// SetText writes a resolved string into the named text slot.
func (c *Controller) SetText(id values.VariableID, text string) {
	c.texts[id] = text
}

// RawText returns the slot's stored string and whether it was present.
func (c *Controller) RawText(id values.VariableID) (string, bool) {
	v, ok := c.texts[id]
	return v, ok
}

// SetEmbedding writes a vector into the named embedding slot.
func (c *Controller) SetEmbedding(id values.VariableID, vec []float32) {
	c.embeddings[id] = vec
}

// Embedding returns the slot's stored vector and whether it was present.
func (c *Controller) Embedding(id values.VariableID) ([]float32, bool) {
	v, ok := c.embeddings[id]
	return v, ok
}

// SetPrompt replaces a prompt history wholesale.
func (c *Controller) SetPrompt(id values.VariableID, msgs []values.ChatMessage) {
	c.prompts[id] = msgs
}

// RawPrompt returns the slot's stored message history and whether it was present.
func (c *Controller) RawPrompt(id values.VariableID) ([]values.ChatMessage, bool) {
	v, ok := c.prompts[id]
	return v, ok
}

// AppendPrompt appends one message to a prompt history, creating it if absent.
func (c *Controller) AppendPrompt(id values.VariableID, msg values.ChatMessage) {
	c.prompts[id] = append(c.prompts[id], msg)
}

// ReplaceSystemPrompt drops every System-role message from the named
// prompt history and prepends the messages produced by messages, so the
// new prompt becomes [produced messages..., preserved non-system
// messages... (original order)]. Grounded on replace_system_prompt
// (original_source/src/bt/controller.rs:279).
func (c *Controller) ReplaceSystemPrompt(id values.VariableID, messages values.PromptValue) error {
	produced, err := c.GetPrompt(messages)
	if err != nil {
		return err
	}

	existing := c.prompts[id]
	kept := make([]values.ChatMessage, 0, len(existing))
	for _, m := range existing {
		if m.Role != values.RoleSystem {
			kept = append(kept, m)
		}
	}

	out := make([]values.ChatMessage, 0, len(produced)+len(kept))
	out = append(out, produced...)
	out = append(out, kept...)
	c.prompts[id] = out
	return nil
}

// SetTemplate stores a raw template string (untouched placeholder syntax)
// under id. Expansion happens lazily, at GetTemplate/resolution time.
func (c *Controller) SetTemplate(id values.VariableID, raw string) {
	c.templates[id] = raw
}

// RawTemplate returns the slot's stored template text and whether it was present.
func (c *Controller) RawTemplate(id values.VariableID) (string, bool) {
	v, ok := c.templates[id]
	return v, ok
}

// GetTemplate returns a named template's fully expanded text.
func (c *Controller) GetTemplate(id values.VariableID) (string, error) {
	raw, ok := c.templates[id]
	if !ok {
		return "", fmt.Errorf("controller: no template named %s", describeID(id))
	}
	return c.ReplaceTemplateVariables(raw)
}

// GetText resolves a values.TextValue against the controller's state.
func (c *Controller) GetText(tv values.TextValue) (string, error) {
	switch v := tv.(type) {
	case values.TextSimple:
		return v.Value, nil

	case values.TextVariable:
		s, ok := c.texts[v.ID]
		if !ok {
			return "", nil
		}
		return s, nil

	case values.TextDefault:
		s, ok := c.texts[v.ID]
		if !ok || s == "" {
			return v.Default, nil
		}
		return s, nil

	case values.TextThoughts:
		s := c.texts[v.ID]
		thoughts, _ := splitThoughts(s)
		return thoughts, nil

	case values.TextWithoutThoughts:
		s := c.texts[v.ID]
		_, rest := splitThoughts(s)
		return rest, nil

	case values.TextMulti:
		var sb strings.Builder
		for _, part := range v.Parts {
			s, err := c.GetText(part)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil

	case values.TextStructured:
		return c.getStructuredText(v)

	default:
		return "", fmt.Errorf("controller: unknown TextValue %T", tv)
	}
}

// getStructuredText resolves every field, then serializes the result as a
// JSON object with fields in sorted-key order, so the same TextStructured
// value always renders identically regardless of map iteration order.
func (c *Controller) getStructuredText(v values.TextStructured) (string, error) {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		s, err := c.GetText(v.Fields[k])
		if err != nil {
			return "", err
		}
		sb.WriteString(jsonQuote(k))
		sb.WriteString(":")
		sb.WriteString(jsonQuote(s))
	}
	sb.WriteString("}")
	return sb.String(), nil
}

func jsonQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

var thinkSpan = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// splitThoughts returns the inner text of the first <think>...</think> span
// of s, and s with every such span removed; both are trimmed.
func splitThoughts(s string) (thoughts, rest string) {
	loc := thinkSpan.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", strings.TrimSpace(s)
	}
	thoughts = s[loc[2]:loc[3]]
	rest = thinkSpan.ReplaceAllString(s, "")
	return strings.TrimSpace(thoughts), strings.TrimSpace(rest)
}

// StripThoughts removes any <think>...</think> span from s and trims the
// remainder. Exported so the agent loop (internal/bark/node) can apply the
// same "strip_thoughts_in_chat" post-processing to messages it appends to
// a prompt history without duplicating the regexp here and there.
func StripThoughts(s string) string {
	_, rest := splitThoughts(s)
	return rest
}

// TextMatches evaluates a values.TextMatcher against already-resolved text.
func (c *Controller) TextMatches(text string, m values.TextMatcher) bool {
	switch v := m.(type) {
	case values.MatchExact:
		return foldCase.String(strings.TrimSpace(text)) == foldCase.String(strings.TrimSpace(v.Value))
	case values.MatchContains:
		return strings.Contains(text, v.Value)
	case values.MatchStartsWith:
		return strings.HasPrefix(text, v.Value)
	case values.MatchEndsWith:
		return strings.HasSuffix(text, v.Value)
	case values.MatchNot:
		return !c.TextMatches(text, v.Inner)
	case values.MatchAny:
		for _, inner := range v.Matchers {
			if c.TextMatches(text, inner) {
				return true
			}
		}
		return false
	case values.MatchAll:
		for _, inner := range v.Matchers {
			if !c.TextMatches(text, inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// GetMessage resolves a values.MessageValue to a single ChatMessage.
// MessageSubPrompt collapses a stored prompt history to one user message by
// joining its non-empty texts with blank lines; MessageTemplate expands the
// named template string into one user message.
func (c *Controller) GetMessage(mv values.MessageValue) (values.ChatMessage, error) {
	switch v := mv.(type) {
	case values.MessageLiteral:
		text, err := c.GetText(v.Text)
		if err != nil {
			return values.ChatMessage{}, err
		}
		return values.ChatMessage{Role: v.Role, Content: values.ContentText{Text: text}}, nil

	case values.MessageSubPrompt:
		msgs, ok := c.prompts[v.ID]
		if !ok {
			return values.ChatMessage{Role: values.RoleUser, Content: values.ContentText{Text: ""}}, nil
		}
		return values.ChatMessage{Role: values.RoleUser, Content: values.ContentText{Text: joinMessages(msgs)}}, nil

	case values.MessageTemplate:
		expanded, err := c.GetTemplate(v.ID)
		if err != nil {
			return values.ChatMessage{}, err
		}
		return values.ChatMessage{Role: values.RoleUser, Content: values.ContentText{Text: expanded}}, nil

	default:
		return values.ChatMessage{}, fmt.Errorf("controller: unknown MessageValue %T", mv)
	}
}

func joinMessages(msgs []values.ChatMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if t := m.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// GetPrompt resolves a values.PromptValue to an ordered message sequence.
func (c *Controller) GetPrompt(pv values.PromptValue) ([]values.ChatMessage, error) {
	switch v := pv.(type) {
	case values.PromptVariable:
		msgs, ok := c.prompts[v.ID]
		if !ok {
			return nil, nil
		}
		out := make([]values.ChatMessage, len(msgs))
		copy(out, msgs)
		return out, nil

	case values.PromptQuick:
		return []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: v.Text}}}, nil

	case values.PromptTemplateRef:
		expanded, err := c.GetTemplate(v.ID)
		if err != nil {
			return nil, err
		}
		return []values.ChatMessage{{Role: values.RoleUser, Content: values.ContentText{Text: expanded}}}, nil

	case values.PromptTemplateFile:
		path, err := c.GetText(v.Path)
		if err != nil {
			return nil, err
		}
		return c.loadTemplateFile(path)

	case values.PromptChat:
		out := make([]values.ChatMessage, 0, len(v.Messages))
		for _, mv := range v.Messages {
			m, err := c.GetMessage(mv)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil

	case values.PromptJoined:
		var out []values.ChatMessage
		for _, part := range v.Parts {
			msgs, err := c.GetPrompt(part)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("controller: unknown PromptValue %T", pv)
	}
}

// Snapshot captures every slot currently held for serialization by a
// DumpState node. It uses slices of entries rather than maps keyed by
// VariableID, since VariableID marshals through a custom MarshalJSON and
// encoding/json can only use a map key type that implements
// encoding.TextMarshaler.
type Snapshot struct {
	Texts      []TextEntry      `json:"texts"`
	Embeddings []EmbeddingEntry `json:"embeddings"`
	Prompts    []PromptEntry    `json:"prompts"`
	Templates  []TemplateEntry  `json:"templates"`
}

// TextEntry is one text-slot snapshot entry.
type TextEntry struct {
	ID    values.VariableID `json:"id"`
	Value string            `json:"value"`
}

// EmbeddingEntry is one embedding-slot snapshot entry; the vector is
// summarized by its width rather than dumped in full, keeping a dump of a
// tree with many pushed embeddings readable.
type EmbeddingEntry struct {
	ID        values.VariableID `json:"id"`
	Dimension int               `json:"dimension"`
}

// PromptEntry is one prompt-slot snapshot entry, flattened to role/text
// pairs for readability; tool-call/tool-response content is rendered as a
// short placeholder rather than its structured payload.
type PromptEntry struct {
	ID       values.VariableID `json:"id"`
	Messages []MessageEntry    `json:"messages"`
}

// MessageEntry is one flattened ChatMessage.
type MessageEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TemplateEntry is one template-slot snapshot entry, holding the raw
// (unexpanded) template text.
type TemplateEntry struct {
	ID  values.VariableID `json:"id"`
	Raw string            `json:"raw"`
}

// Snapshot builds a serializable view of every slot the controller holds.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{}
	for id, v := range c.texts {
		snap.Texts = append(snap.Texts, TextEntry{ID: id, Value: v})
	}
	for id, vec := range c.embeddings {
		snap.Embeddings = append(snap.Embeddings, EmbeddingEntry{ID: id, Dimension: len(vec)})
	}
	for id, msgs := range c.prompts {
		entry := PromptEntry{ID: id}
		for _, m := range msgs {
			text := m.Text()
			if text == "" {
				text = fmt.Sprintf("<%T>", m.Content)
			}
			entry.Messages = append(entry.Messages, MessageEntry{Role: string(m.Role), Text: text})
		}
		snap.Prompts = append(snap.Prompts, entry)
	}
	for id, raw := range c.templates {
		snap.Templates = append(snap.Templates, TemplateEntry{ID: id, Raw: raw})
	}
	return snap
}

func describeID(id values.VariableID) string {
	if id.Kind == values.VarNamed {
		return id.Name
	}
	return fmt.Sprintf("<reserved:%d>", id.Kind)
}
