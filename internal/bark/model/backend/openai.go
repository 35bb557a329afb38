package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// OpenAIBackend calls any OpenAI-compatible chat completions endpoint.
// With BaseURL left empty it talks to the real OpenAI API; pointed at
// "http://localhost:11434/v1" (Ollama's OpenAI-compatible surface) it
// drives a local model through the same code path, matching the teacher's
// pattern of layering an Ollama provider on the OpenAI client instead of a
// bespoke HTTP client.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIBackend builds a backend from cfg.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(conf),
		model:  cfg.Model,
	}
}

func (b *OpenAIBackend) Chat(ctx context.Context, messages []values.ChatMessage, tools []model.ToolSchema) (model.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}

	for _, m := range messages {
		switch content := m.Content.(type) {
		case values.ContentText:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:    openAIRole(m.Role),
				Content: content.Text,
			})
		case values.ContentToolCall:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   content.Call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      content.Call.Function,
						Arguments: string(content.Call.Arguments),
					},
				}},
			})
		case values.ContentToolResponse:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content.Text,
				ToolCallID: content.ID,
			})
		}
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.Response{}, fmt.Errorf("backend: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Response{}, fmt.Errorf("backend: openai: empty response")
	}
	choice := resp.Choices[0].Message
	usage := resp.Usage.TotalTokens

	if len(choice.ToolCalls) > 0 {
		calls := make([]values.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			calls[i] = values.ToolCall{ID: tc.ID, Function: tc.Function.Name, Arguments: json.RawMessage(tc.Function.Arguments)}
		}
		return model.Response{Kind: model.ResponseToolCalls, ToolCalls: calls, Usage: usage}, nil
	}
	return model.Response{Kind: model.ResponseText, Text: choice.Content, Usage: usage}, nil
}

func openAIRole(r values.Role) string {
	switch r {
	case values.RoleSystem:
		return openai.ChatMessageRoleSystem
	case values.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case values.RoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

var _ model.ChatBackend = (*OpenAIBackend)(nil)

// OpenAIEmbeddingBackend calls the OpenAI (or OpenAI-compatible) embeddings
// endpoint.
type OpenAIEmbeddingBackend struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAIEmbeddingBackend builds an embedding backend. dims must match
// the chosen model's actual output width; it is not queried from the API.
func NewOpenAIEmbeddingBackend(cfg OpenAIConfig, modelName string, dims int) *OpenAIEmbeddingBackend {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbeddingBackend{
		client: openai.NewClientWithConfig(conf),
		model:  openai.EmbeddingModel(modelName),
		dims:   dims,
	}
}

func (b *OpenAIEmbeddingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: b.model,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("backend: openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

func (b *OpenAIEmbeddingBackend) Dimensions() int { return b.dims }

var _ model.EmbeddingBackend = (*OpenAIEmbeddingBackend)(nil)
