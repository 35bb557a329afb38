package toolcaller

import (
	"context"
	"encoding/json"
)

// Transport is the wire-level connection to one tool server, shared by
// both the stdio and HTTP/SSE implementations.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Events() <-chan *JSONRPCNotification
	Connected() bool
}

// NewTransport dials cfg using the transport it names, defaulting to stdio
// when unset (matching the teacher's internal/mcp.NewTransport default).
func NewTransport(cfg ServerConfig) Transport {
	switch cfg.Transport {
	case TransportHTTP:
		return NewSSETransport(cfg)
	default:
		return NewStdioTransport(cfg)
	}
}
