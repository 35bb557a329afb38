package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// GenaiChatBackend calls Gemini's GenerateContent API. Adapted from the
// teacher's internal/agent/providers.GoogleProvider.convertMessages, used
// non-streaming.
type GenaiChatBackend struct {
	client *genai.Client
	model  string
}

// NewGenaiChatBackend builds a chat backend sharing the genai client
// construction used by NewGenaiEmbeddingBackend.
func NewGenaiChatBackend(ctx context.Context, apiKey, modelName string) (*GenaiChatBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("backend: genai: new client: %w", err)
	}
	return &GenaiChatBackend{client: client, model: modelName}, nil
}

func (b *GenaiChatBackend) Chat(ctx context.Context, messages []values.ChatMessage, tools []model.ToolSchema) (model.Response, error) {
	var system *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		text, ok := m.Content.(values.ContentText)
		if !ok {
			continue
		}
		if m.Role == values.RoleSystem {
			system = &genai.Content{Parts: []*genai.Part{{Text: text.Text}}}
			continue
		}
		role := genai.RoleUser
		if m.Role == values.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: text.Text}}})
	}

	cfg := &genai.GenerateContentConfig{}
	if system != nil {
		cfg.SystemInstruction = system
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return model.Response{}, fmt.Errorf("backend: genai: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Response{}, fmt.Errorf("backend: genai: empty response")
	}

	var text string
	var calls []values.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, values.ToolCall{Function: part.FunctionCall.Name, Arguments: args})
		}
	}

	var usage int
	if resp.UsageMetadata != nil {
		usage = int(resp.UsageMetadata.TotalTokenCount)
	}

	if len(calls) > 0 {
		return model.Response{Kind: model.ResponseToolCalls, ToolCalls: calls, Usage: usage}, nil
	}
	return model.Response{Kind: model.ResponseText, Text: text, Usage: usage}, nil
}

var _ model.ChatBackend = (*GenaiChatBackend)(nil)
