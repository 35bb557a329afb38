package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
)

// BedrockBackend calls AWS Bedrock's Converse API, which normalizes tool
// use and system prompts the same way across every foundation model the
// account has access to (Anthropic, Titan, Llama, Mistral, Cohere).
// Adapted from the teacher's internal/agent/providers.BedrockProvider, used
// non-streaming since a tick wants one complete Response per call.
type BedrockBackend struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int32
}

// BedrockConfig configures a BedrockBackend.
type BedrockConfig struct {
	Region    string
	ModelID   string
	MaxTokens int32
}

// NewBedrockBackend loads AWS credentials via the default chain (env, IAM
// role, shared config file) and builds a backend for cfg.Region.
func NewBedrockBackend(ctx context.Context, cfg BedrockConfig) (*BedrockBackend, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("backend: bedrock: load AWS config: %w", err)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &BedrockBackend{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		modelID:   cfg.ModelID,
		maxTokens: maxTokens,
	}, nil
}

func (b *BedrockBackend) Chat(ctx context.Context, messages []values.ChatMessage, tools []model.ToolSchema) (model.Response, error) {
	var system []types.SystemContentBlock
	var turns []types.Message

	for _, m := range messages {
		text, ok := m.Content.(values.ContentText)
		if !ok {
			continue
		}
		if m.Role == values.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: text.Text})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == values.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		turns = append(turns, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text.Text}},
		})
	}

	req := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(b.modelID),
		Messages: turns,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(b.maxTokens),
		},
	}
	if len(system) > 0 {
		req.System = system
	}
	if len(tools) > 0 {
		var toolSpecs []types.Tool
		for _, t := range tools {
			toolSpecs = append(toolSpecs, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(t.Name),
					Description: aws.String(t.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Parameters)},
				},
			})
		}
		req.ToolConfig = &types.ToolConfiguration{Tools: toolSpecs}
	}

	resp, err := b.client.Converse(ctx, req)
	if err != nil {
		return model.Response{}, fmt.Errorf("backend: bedrock: %w", err)
	}

	output, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return model.Response{}, fmt.Errorf("backend: bedrock: unexpected output type %T", resp.Output)
	}

	var text string
	var calls []values.ToolCall
	for _, block := range output.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			text += v.Value
		case *types.ContentBlockMemberToolUse:
			var input map[string]any
			if err := v.Value.Input.UnmarshalSmithyDocument(&input); err == nil {
				args, _ := json.Marshal(input)
				calls = append(calls, values.ToolCall{
					ID:        aws.ToString(v.Value.ToolUseId),
					Function:  aws.ToString(v.Value.Name),
					Arguments: args,
				})
			}
		}
	}

	var usage int
	if resp.Usage != nil {
		usage = int(aws.ToInt32(resp.Usage.TotalTokens))
	}

	if len(calls) > 0 {
		return model.Response{Kind: model.ResponseToolCalls, ToolCalls: calls, Usage: usage}, nil
	}
	return model.Response{Kind: model.ResponseText, Text: text, Usage: usage}, nil
}

var _ model.ChatBackend = (*BedrockBackend)(nil)
