// Package backend implements model.ChatBackend and model.EmbeddingBackend
// against real provider SDKs: anthropic-sdk-go, sashabaranov/go-openai (also
// used, with a custom base URL, for any OpenAI-compatible endpoint
// including Ollama), and aws-sdk-go-v2's bedrockruntime. Each backend
// converts the shared values.ChatMessage/model.ToolSchema shapes into its
// provider's wire types and back, so internal/bark/node never imports a
// provider SDK directly. Grounded on the teacher's
// internal/agent/providers package, trimmed to non-streaming calls since a
// tick only needs one full response per ResumeWith, not an incremental
// chunk feed.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicConfig configures an AnthropicBackend.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// NewAnthropicBackend builds a backend from cfg, defaulting MaxTokens to
// 4096 when unset.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (b *AnthropicBackend) Chat(ctx context.Context, messages []values.ChatMessage, tools []model.ToolSchema) (model.Response, error) {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, m := range messages {
		switch content := m.Content.(type) {
		case values.ContentText:
			if m.Role == values.RoleSystem {
				system = append(system, anthropic.TextBlockParam{Text: content.Text})
				continue
			}
			block := anthropic.NewTextBlock(content.Text)
			if m.Role == values.RoleAssistant {
				turns = append(turns, anthropic.NewAssistantMessage(block))
			} else {
				turns = append(turns, anthropic.NewUserMessage(block))
			}
		case values.ContentToolCall:
			var input any
			_ = json.Unmarshal(content.Call.Arguments, &input)
			turns = append(turns, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(content.Call.ID, input, content.Call.Function)))
		case values.ContentToolResponse:
			turns = append(turns, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(content.ID, content.Text, false)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages:  turns,
	}
	if len(system) > 0 {
		params.System = system
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]},
			},
		})
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, fmt.Errorf("backend: anthropic: %w", err)
	}

	var text string
	var calls []values.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args, _ := json.Marshal(tu.Input)
			calls = append(calls, values.ToolCall{ID: tu.ID, Function: tu.Name, Arguments: args})
		}
	}

	usage := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)

	if len(calls) > 0 {
		return model.Response{Kind: model.ResponseToolCalls, ToolCalls: calls, Usage: usage}, nil
	}
	return model.Response{Kind: model.ResponseText, Text: text, Usage: usage}, nil
}

var _ model.ChatBackend = (*AnthropicBackend)(nil)
