// Package model defines the collaborator interfaces a tick needs to talk to
// the outside world — named chat backends, one embedding backend, and a
// tool caller — aggregated behind a single Facade so node implementations
// take one dependency instead of three. This is the Go shape of the
// interpreter's "Model" object: concrete backends live in
// internal/bark/model/backend and internal/bark/toolcaller; this package
// only knows their interfaces, so it never imports either.
package model

import (
	"context"

	"github.com/barktree/bark/internal/bark/values"
	"github.com/barktree/bark/internal/bark/vectordb"
)

// ChatBackend is one named LLM endpoint a tree can address by key (e.g.
// "claude", "gpt4o", "local-ollama" as configured in the model config
// file). Implementations live in internal/bark/model/backend.
type ChatBackend interface {
	// Chat sends messages (already resolved by the controller) plus the
	// set of tool schemas currently in scope, and returns either a text
	// completion or one or more tool calls the agent loop must satisfy
	// before the backend will produce text.
	Chat(ctx context.Context, messages []values.ChatMessage, tools []ToolSchema) (Response, error)
}

// EmbeddingBackend turns text into a fixed-width vector for vectordb
// push/pull operations.
type EmbeddingBackend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the backend's vector width, used when a vectordb
	// file is created fresh and needs a column width.
	Dimensions() int
}

// ToolSchema describes one callable tool to a ChatBackend, matching the
// shape every provider's function-calling API expects: a federated name
// (see toolcaller.Federation), a human description, and a JSON Schema for
// its arguments.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCaller is the interface the agent loop (internal/bark/node) drives
// tool calls through. internal/bark/toolcaller.Federation is the only
// implementation; it is declared here, not there, so that package can stay
// free of any dependency on internal/bark/model.
type ToolCaller interface {
	// Schemas returns every tool currently reachable under the given
	// filter expression (see toolcaller's filter algebra), for inclusion
	// in a Chat call.
	Schemas(ctx context.Context, filter string) ([]ToolSchema, error)
	// Call dispatches a single tool invocation and returns its text
	// result, or an error if the tool name is unknown, filtered out, or
	// the call itself failed.
	Call(ctx context.Context, call values.ToolCall) (string, error)
}

// ResponseKind distinguishes a finished chat turn from one still wanting
// tool results before it can continue.
type ResponseKind int

const (
	ResponseText ResponseKind = iota
	ResponseToolCalls
)

// Response is what a ChatBackend.Chat call returns: either finished text or
// a batch of tool calls the agent loop must satisfy and feed back in as
// ContentToolResponse messages before calling Chat again.
type Response struct {
	Kind      ResponseKind
	Text      string
	ToolCalls []values.ToolCall
	// Usage is the provider-reported total token count for this call, 0
	// when the backend doesn't surface it. Gas accounting (internal/bark/
	// node) spends a flat default instead of 0 in that case, matching the
	// spec's "default 1000 when unreported" rule.
	Usage int
}

// DefaultGasCost is spent against a tick's gas budget for a billable call
// whose backend didn't report token usage.
const DefaultGasCost = 1000

// DebugToolName is a synthetic tool that toolcaller.Federation handles
// itself: Schemas returns it, on its own, when the filter expression
// contains a "debug" clause, and Call answers it with a fixed success
// string instead of reaching any real backend.
const DebugToolName = "debug__dump_state"

// Facade aggregates everything a tick needs to talk to the outside world.
// One Facade is shared by every node in a tree instance; TreeRoot records
// the filesystem directory the tree was loaded from, so PromptTemplateFile
// and SaveFile/LoadFile nodes can resolve relative paths consistently.
type Facade struct {
	Backends map[string]ChatBackend
	Embedder EmbeddingBackend
	Tools    ToolCaller
	TreeRoot string
	// VectorDBs maps a tree-authored name to an open vector database, so a
	// PushSimpleEmbedding/PushValuedEmbedding/PullBestScored node can
	// address "db" by the same key the tree descriptor's config declared
	// it under.
	VectorDBs map[string]*vectordb.DB
	// StripThoughtsInChat, when true, removes <think>...</think> spans from
	// assistant text before it is appended to a prompt history (the text
	// returned to the caller is never touched). Mirrors the interpreter's
	// model-level chat hygiene setting.
	StripThoughtsInChat bool
}

// Backend looks up a named chat backend, returning ok=false if the tree
// references a backend key the model config never defined.
func (f *Facade) Backend(name string) (ChatBackend, bool) {
	b, ok := f.Backends[name]
	return b, ok
}

// VectorDB looks up a named vector database, returning ok=false if the
// tree references a db key the model config never opened.
func (f *Facade) VectorDB(name string) (*vectordb.DB, bool) {
	db, ok := f.VectorDBs[name]
	return db, ok
}
