package config

import (
	"context"
	"fmt"

	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/model/backend"
	"github.com/barktree/bark/internal/bark/toolcaller"
	"github.com/barktree/bark/internal/bark/vectordb"
)

// Build turns a decoded Config into a ready model.Facade: one ChatBackend
// per configured backend entry, an optional embedding backend, opened
// vector database files, and a tool-caller federation if any tool servers
// are configured. treeRoot is threaded straight onto the resulting facade
// per spec.md §9 ("the tree-root path should be passed through the model
// facade, not via a process-wide cell").
func Build(ctx context.Context, cfg *Config, treeRoot string) (*model.Facade, error) {
	facade := &model.Facade{
		Backends:            map[string]model.ChatBackend{},
		TreeRoot:            treeRoot,
		VectorDBs:           map[string]*vectordb.DB{},
		StripThoughtsInChat: cfg.StripThoughtsInChat,
	}

	for name, bc := range cfg.Backends {
		b, err := buildChatBackend(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("config: backend %q: %w", name, err)
		}
		facade.Backends[name] = b
	}

	if cfg.Embedding != nil {
		e, err := buildEmbeddingBackend(ctx, *cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("config: embedding backend: %w", err)
		}
		facade.Embedder = e
	}

	for name, vc := range cfg.VectorDBs {
		db, err := vectordb.Open(vc.Path, vc.Dims)
		if err != nil {
			return nil, fmt.Errorf("config: vector db %q: %w", name, err)
		}
		facade.VectorDBs[name] = db
	}

	if len(cfg.Tools) > 0 {
		fed, err := toolcaller.NewFederation(ctx, cfg.Tools)
		if err != nil {
			return nil, fmt.Errorf("config: tool federation: %w", err)
		}
		facade.Tools = fed
	}

	return facade, nil
}

func buildChatBackend(ctx context.Context, bc BackendConfig) (model.ChatBackend, error) {
	switch bc.Kind {
	case "", "openai", "ollama":
		return backend.NewOpenAIBackend(backend.OpenAIConfig{
			APIKey:  bc.APIKey,
			BaseURL: bc.BaseURL,
			Model:   bc.Model,
		}), nil
	case "anthropic":
		return backend.NewAnthropicBackend(backend.AnthropicConfig{
			APIKey:    bc.APIKey,
			BaseURL:   bc.BaseURL,
			Model:     bc.Model,
			MaxTokens: bc.MaxTokens,
		}), nil
	case "bedrock":
		return backend.NewBedrockBackend(ctx, backend.BedrockConfig{
			Region:    bc.Region,
			ModelID:   bc.Model,
			MaxTokens: int32(bc.MaxTokens),
		})
	case "genai", "gemini":
		return backend.NewGenaiChatBackend(ctx, bc.APIKey, bc.Model)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", bc.Kind)
	}
}

func buildEmbeddingBackend(ctx context.Context, ec EmbeddingConfig) (model.EmbeddingBackend, error) {
	dims := ec.Dims
	if dims <= 0 {
		dims = 1536
	}
	switch ec.Kind {
	case "", "openai", "ollama":
		return backend.NewOpenAIEmbeddingBackend(backend.OpenAIConfig{
			APIKey:  ec.APIKey,
			BaseURL: ec.BaseURL,
		}, ec.Model, dims), nil
	case "genai", "gemini":
		return backend.NewGenaiEmbeddingBackend(ctx, backend.GenaiEmbeddingConfig{
			APIKey: ec.APIKey,
			Model:  ec.Model,
			Dims:   dims,
		})
	default:
		return nil, fmt.Errorf("unknown embedding backend kind %q", ec.Kind)
	}
}
