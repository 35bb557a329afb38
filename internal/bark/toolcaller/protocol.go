// Package toolcaller implements the tree's tool-calling surface: a
// JSON-RPC 2.0 client speaking the MCP wire protocol over either a
// stdio subprocess or an HTTP/SSE endpoint, and a Federation that
// aggregates many such servers behind one model.ToolCaller, qualifying
// every tool name by its source server so two servers can each expose a
// "search" tool without colliding.
//
// Grounded directly on the teacher's internal/mcp package: protocol.go's
// JSONRPCRequest/Response/Notification/Error types and transport.go's
// Transport interface are carried over close to verbatim, since this is
// exactly the wire format a tree's tool-calling tick needs.
package toolcaller

import (
	"encoding/json"
	"time"
)

// JSONRPCRequest is an outgoing call or a server-initiated request
// received over Requests().
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCResponse is the reply to a Call.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCNotification is a server-pushed event with no reply expected.
type JSONRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCError is a protocol-level error reply.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string { return e.Message }

// ToolDescriptor is one tool as advertised by a server's tools/list reply.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// TransportKind selects how a ServerConfig is dialed.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ServerConfig describes one upstream tool server, as authored in the
// model config file's "tools" section.
type ServerConfig struct {
	ID        string            `yaml:"id"`
	Transport TransportKind     `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	WorkDir   string            `yaml:"workdir"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	// Filter holds one clause of the filter algebra (see filter.go). It is
	// decoded from the config file but nothing applies it: the tools a chat
	// call sees are chosen only by the filter expression passed to
	// Federation.Schemas.
	Filter string `yaml:"filter"`

	// JWTSecret, when set, makes every HTTP/SSE request to this server
	// carry a freshly-signed "Authorization: Bearer <token>" header
	// instead of (or alongside) a static one in Headers. JWTSubject and
	// JWTTTL configure the minted token's "sub" claim and lifetime.
	JWTSecret  string        `yaml:"jwt_secret"`
	JWTSubject string        `yaml:"jwt_subject"`
	JWTTTL     time.Duration `yaml:"jwt_ttl"`
}
