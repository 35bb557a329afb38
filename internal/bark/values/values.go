// Package values defines the deferred-evaluation sum types threaded through
// tree node descriptors: variable identifiers, text producers, chat message
// producers, prompt producers, and text matchers. Every type here is a
// closed tagged union expressed as a Go interface with an unexported marker
// method, per the "sum types over class hierarchies" guidance for this
// runtime: nodes hold these values and resolve them against a controller at
// tick time rather than at parse time.
package values

import "encoding/json"

// VariableKind enumerates the closed set of controller slot variants.
type VariableKind int

const (
	// VarLoopValue is written by sequence/fan-out wrappers on each iteration.
	VarLoopValue VariableKind = iota
	// VarAccumulator is a general-purpose scratch slot.
	VarAccumulator
	// VarLastOutput holds the most recently completed chat's text and prompt.
	VarLastOutput
	// VarPreEmbed holds the default query-embedding prefix string.
	VarPreEmbed
	// VarNamed carries a user-chosen string key.
	VarNamed
)

// VariableID identifies a slot in the Controller. Equality is structural,
// so VariableID is usable directly as a Go map key; that equality includes
// the Kind, matching the spec's "equality and hashing include the variant".
type VariableID struct {
	Kind VariableKind
	Name string // only meaningful when Kind == VarNamed
}

// Named constructs a user-named VariableID.
func Named(name string) VariableID { return VariableID{Kind: VarNamed, Name: name} }

// LoopValue, Accumulator, LastOutput, and PreEmbed are the four reserved
// variants, exposed as values so call sites can write values.LoopValue
// instead of re-deriving the struct literal.
var (
	LoopValue   = VariableID{Kind: VarLoopValue}
	Accumulator = VariableID{Kind: VarAccumulator}
	LastOutput  = VariableID{Kind: VarLastOutput}
	PreEmbed    = VariableID{Kind: VarPreEmbed}
)

// ReservedKey maps the four lower-snake reserved names used in template
// placeholders ({{accumulator}}, {{loop_value}}, ...) onto their VariableID.
// The second return is false when key is not one of the reserved names, in
// which case the caller should fall back to a user-named variable.
func ReservedKey(key string) (VariableID, bool) {
	switch key {
	case "accumulator":
		return Accumulator, true
	case "loop_value":
		return LoopValue, true
	case "last_output":
		return LastOutput, true
	case "pre_embed":
		return PreEmbed, true
	default:
		return VariableID{}, false
	}
}

// KeyToVariableID maps an arbitrary placeholder KEY to a VariableID: the
// four reserved names map to their variant, anything else is user-named.
func KeyToVariableID(key string) VariableID {
	if id, ok := ReservedKey(key); ok {
		return id
	}
	return Named(key)
}

// TextValue is a deferred text producer. Resolve against a Controller via
// controller.GetText.
type TextValue interface {
	isTextValue()
}

// TextSimple is a literal string.
type TextSimple struct{ Value string }

// TextVariable looks up a variable; missing yields empty string.
type TextVariable struct{ ID VariableID }

// TextDefault looks up a variable, falling back to Default when absent or empty.
type TextDefault struct {
	ID      VariableID
	Default string
}

// TextThoughts extracts the <think>...</think> span from a variable's value.
type TextThoughts struct{ ID VariableID }

// TextWithoutThoughts is a variable's value with any <think>...</think> span removed, trimmed.
type TextWithoutThoughts struct{ ID VariableID }

// TextMulti concatenates the resolution of each part, in order.
type TextMulti struct{ Parts []TextValue }

// TextStructured resolves each map entry and serializes the result as a
// JSON object string with lexicographically ordered keys.
type TextStructured struct{ Fields map[string]TextValue }

func (TextSimple) isTextValue()          {}
func (TextVariable) isTextValue()        {}
func (TextDefault) isTextValue()         {}
func (TextThoughts) isTextValue()        {}
func (TextWithoutThoughts) isTextValue() {}
func (TextMulti) isTextValue()           {}
func (TextStructured) isTextValue()      {}

// Role identifies the speaker of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to invoke a named function with
// JSON-encoded arguments.
type ToolCall struct {
	ID        string
	Function  string
	Arguments json.RawMessage
}

// MessageContent is the closed union of what a realized ChatMessage carries.
type MessageContent interface {
	isMessageContent()
}

// ContentText is plain response/prompt text.
type ContentText struct{ Text string }

// ContentToolCall is an assistant-issued tool invocation request.
type ContentToolCall struct{ Call ToolCall }

// ContentToolResponse is the result of a tool invocation, addressed back to
// the call that requested it.
type ContentToolResponse struct {
	ID   string
	Text string
}

func (ContentText) isMessageContent()         {}
func (ContentToolCall) isMessageContent()     {}
func (ContentToolResponse) isMessageContent() {}

// ChatMessage is a realized, role-tagged message ready to hand to a chat
// backend or store in a prompt slot.
type ChatMessage struct {
	Role    Role
	Content MessageContent
}

// Text returns the message's text if its content is ContentText, else "".
func (m ChatMessage) Text() string {
	if t, ok := m.Content.(ContentText); ok {
		return t.Text
	}
	return ""
}

// MessageValue is a deferred ChatMessage producer, authored as part of a
// PromptValue or template.
type MessageValue interface {
	isMessageValue()
}

// MessageLiteral is an authored literal message of a fixed role.
type MessageLiteral struct {
	Role Role
	Text TextValue
}

// MessageSubPrompt inlines a previously built prompt (a sequence of messages) by id.
type MessageSubPrompt struct{ ID VariableID }

// MessageTemplate expands a named template (a sequence of MessageValue) by id.
type MessageTemplate struct{ ID VariableID }

func (MessageLiteral) isMessageValue()   {}
func (MessageSubPrompt) isMessageValue() {}
func (MessageTemplate) isMessageValue()  {}

// PromptValue is a deferred producer of an ordered sequence of ChatMessage.
type PromptValue interface {
	isPromptValue()
}

// PromptVariable resolves to the prompt slot named by ID.
type PromptVariable struct{ ID VariableID }

// PromptQuick builds a single user message from a literal string.
type PromptQuick struct{ Text string }

// PromptTemplateRef expands the named template.
type PromptTemplateRef struct{ ID VariableID }

// PromptTemplateFile loads a template from an external file whose path is
// the resolution of Path. ".json" files decode a []MessageValue; any other
// extension is parsed as line-oriented template text.
type PromptTemplateFile struct{ Path TextValue }

// PromptChat is a literal, fully authored sequence of messages.
type PromptChat struct{ Messages []MessageValue }

// PromptJoined concatenates the resolution of each part, in order.
type PromptJoined struct{ Parts []PromptValue }

func (PromptVariable) isPromptValue()     {}
func (PromptQuick) isPromptValue()        {}
func (PromptTemplateRef) isPromptValue()  {}
func (PromptTemplateFile) isPromptValue() {}
func (PromptChat) isPromptValue()         {}
func (PromptJoined) isPromptValue()       {}

// TextMatcher is a boolean predicate evaluated against a resolved text.
type TextMatcher interface {
	isTextMatcher()
}

// MatchExact compares case-insensitively after trimming both sides.
type MatchExact struct{ Value string }

// MatchContains reports whether the text contains Value.
type MatchContains struct{ Value string }

// MatchStartsWith reports whether the text starts with Value.
type MatchStartsWith struct{ Value string }

// MatchEndsWith reports whether the text ends with Value.
type MatchEndsWith struct{ Value string }

// MatchNot negates Inner.
type MatchNot struct{ Inner TextMatcher }

// MatchAny is true iff at least one of Matchers is true.
type MatchAny struct{ Matchers []TextMatcher }

// MatchAll is true iff every one of Matchers is true.
type MatchAll struct{ Matchers []TextMatcher }

func (MatchExact) isTextMatcher()      {}
func (MatchContains) isTextMatcher()   {}
func (MatchStartsWith) isTextMatcher() {}
func (MatchEndsWith) isTextMatcher()   {}
func (MatchNot) isTextMatcher()        {}
func (MatchAny) isTextMatcher()        {}
func (MatchAll) isTextMatcher()        {}
