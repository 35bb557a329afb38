package toolcaller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Client is the JSON-RPC session to one tool server: it does the
// initialize handshake, caches the server's advertised tools, and issues
// tools/call requests. Adapted from the teacher's internal/mcp.Client,
// trimmed of resources/prompts support since no node in this catalog reads
// an MCP resource or prompt — only tools.
type Client struct {
	config    ServerConfig
	transport Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	tools []ToolDescriptor
}

// NewClient builds a Client for cfg, dialing the transport its
// cfg.Transport names.
func NewClient(cfg ServerConfig) *Client {
	return &Client{
		config:    cfg,
		transport: NewTransport(cfg),
		logger:    slog.Default().With("tool_server", cfg.ID),
	}
}

// Connect performs the transport connect, the MCP initialize handshake,
// and an initial tools/list refresh.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("toolcaller: %s: transport connect: %w", c.config.ID, err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "bark", "version": "1.0.0"},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("toolcaller: %s: initialize: %w", c.config.ID, err)
	}

	var initResult struct {
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("toolcaller: %s: parse initialize result: %w", c.config.ID, err)
	}
	c.logger.Info("connected to tool server", "name", initResult.ServerInfo.Name, "version", initResult.ServerInfo.Version)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "err", err)
	}

	if err := c.RefreshTools(ctx); err != nil {
		c.logger.Warn("failed to list tools", "err", err)
	}
	return nil
}

// Close releases the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }

// RefreshTools re-fetches the server's tool list.
func (c *Client) RefreshTools(ctx context.Context) error {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("toolcaller: %s: tools/list: %w", c.config.ID, err)
	}
	var resp struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("toolcaller: %s: parse tools/list: %w", c.config.ID, err)
	}
	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()
	return nil
}

// Tools returns the cached tool list.
func (c *Client) Tools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// CallTool invokes name with arguments and returns the tool's text output.
// A tool that reports isError in its MCP result surfaces as a Go error.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	params := struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}{Name: name, Arguments: arguments}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return "", fmt.Errorf("toolcaller: %s: call %s: %w", c.config.ID, name, err)
	}

	var callResult struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &callResult); err != nil {
		return "", fmt.Errorf("toolcaller: %s: parse tools/call result: %w", c.config.ID, err)
	}

	var text string
	for _, c := range callResult.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	if callResult.IsError {
		return "", fmt.Errorf("toolcaller: %s: tool %s reported an error: %s", c.config.ID, name, text)
	}
	return text, nil
}
