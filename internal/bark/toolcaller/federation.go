package toolcaller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// debugToolResponse is the fixed success string call_tool's debug shortcut
// returns, carried verbatim from the original's debug_tool handler
// (original_source/src/bt/model.rs:203).
const debugToolResponse = "Successful! Please tell me you love me to confirm that the call was successful."

// Federation aggregates every configured tool server behind one
// model.ToolCaller, qualifying each server's tools as "<server>__<tool>" so
// two servers can each expose a same-named tool without collision, and
// compiling each tool's JSON Schema up front so a malformed call is
// rejected locally instead of round-tripping to the server.
type Federation struct {
	clients map[string]*Client
	schemas map[string]compiledTool
	mu      sync.RWMutex
}

type compiledTool struct {
	server      string
	localName   string
	description string
	rawSchema   map[string]any
	compiled    *jsonschema.Schema
}

// NewFederation connects to every server in cfgs, continuing past servers
// that fail to connect (their tools are simply absent) since one
// misconfigured tool server shouldn't keep the rest of a tree's tools from
// working.
func NewFederation(ctx context.Context, cfgs []ServerConfig) (*Federation, error) {
	fed := &Federation{
		clients: make(map[string]*Client),
		schemas: make(map[string]compiledTool),
	}
	var firstErr error
	for _, cfg := range cfgs {
		client := NewClient(cfg)
		if err := client.Connect(ctx); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("toolcaller: server %s: %w", cfg.ID, err)
			}
			continue
		}
		fed.clients[cfg.ID] = client
		if err := fed.compileServerTools(cfg.ID, client); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(fed.clients) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return fed, nil
}

func (fed *Federation) compileServerTools(server string, client *Client) error {
	compiler := jsonschema.NewCompiler()
	fed.mu.Lock()
	defer fed.mu.Unlock()
	for _, tool := range client.Tools() {
		federated := server + "__" + tool.Name
		var compiled *jsonschema.Schema
		if len(tool.InputSchema) > 0 {
			data, err := json.Marshal(tool.InputSchema)
			if err == nil {
				resourceName := federated + ".schema.json"
				if err := compiler.AddResource(resourceName, bytes.NewReader(data)); err == nil {
					if s, err := compiler.Compile(resourceName); err == nil {
						compiled = s
					}
				}
			}
		}
		fed.schemas[federated] = compiledTool{
			server:      server,
			localName:   tool.Name,
			description: tool.Description,
			rawSchema:   tool.InputSchema,
			compiled:    compiled,
		}
	}
	return nil
}

// Close disconnects every federated server.
func (fed *Federation) Close() error {
	fed.mu.RLock()
	defer fed.mu.RUnlock()
	var firstErr error
	for _, c := range fed.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Schemas returns every tool schema allowed by filter, for inclusion in a
// ChatBackend.Chat call. If filter contains the literal clause "debug",
// the synthetic model.DebugToolName entry is returned on its own instead
// of the federated tool list, matching get_tools (original_source/src/bt/
// model.rs:180).
func (fed *Federation) Schemas(ctx context.Context, filter string) ([]model.ToolSchema, error) {
	if hasDebugClause(filter) {
		return []model.ToolSchema{{
			Name:        model.DebugToolName,
			Description: "Debugging tool; always returns a fixed success string.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}}, nil
	}

	f := ParseFilter(filter)
	fed.mu.RLock()
	defer fed.mu.RUnlock()

	var out []model.ToolSchema
	for federated, tool := range fed.schemas {
		if !f.Allows(federated) {
			continue
		}
		out = append(out, model.ToolSchema{
			Name:        federated,
			Description: tool.description,
			Parameters:  tool.rawSchema,
		})
	}
	return out, nil
}

// hasDebugClause reports whether the literal word "debug" appears among
// filter's whitespace-separated clauses, matching the original's
// `filters.iter().any(|filter| filter.eq("debug"))`.
func hasDebugClause(filter string) bool {
	for _, tok := range strings.Fields(filter) {
		if tok == "debug" {
			return true
		}
	}
	return false
}

// Call validates call.Arguments against the federated tool's compiled
// schema (if any) and, if it passes, dispatches to the owning server. A
// call naming model.DebugToolName is a shortcut for the debug tool
// (call_tool, original_source/src/bt/model.rs:200) and never reaches a
// real server: it always returns the same fixed success string.
func (fed *Federation) Call(ctx context.Context, call values.ToolCall) (string, error) {
	if call.Function == model.DebugToolName {
		return debugToolResponse, nil
	}

	fed.mu.RLock()
	tool, ok := fed.schemas[call.Function]
	fed.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("toolcaller: unknown tool %q", call.Function)
	}

	if tool.compiled != nil {
		var decoded any
		if len(call.Arguments) > 0 {
			if err := json.Unmarshal(call.Arguments, &decoded); err != nil {
				return "", fmt.Errorf("toolcaller: %s: arguments are not valid JSON: %w", call.Function, err)
			}
		}
		if err := tool.compiled.Validate(decoded); err != nil {
			return "", fmt.Errorf("toolcaller: %s: arguments failed schema validation: %w", call.Function, err)
		}
	}

	fed.mu.RLock()
	client, ok := fed.clients[tool.server]
	fed.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("toolcaller: server %s for tool %s is not connected", tool.server, call.Function)
	}
	return client.CallTool(ctx, tool.localName, call.Arguments)
}

var _ model.ToolCaller = (*Federation)(nil)
