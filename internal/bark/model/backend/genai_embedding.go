package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/barktree/bark/internal/bark/model"
)

// GenaiEmbeddingBackend calls Gemini's embedding model through
// google.golang.org/genai. Grounded on the teacher's
// internal/agent/providers.GoogleProvider client construction
// (genai.NewClient with BackendGeminiAPI); this backend only needs the
// Models.EmbedContent call, not the full chat surface that package covers.
type GenaiEmbeddingBackend struct {
	client *genai.Client
	model  string
	dims   int
}

// GenaiEmbeddingConfig configures a GenaiEmbeddingBackend.
type GenaiEmbeddingConfig struct {
	APIKey string
	Model  string
	Dims   int
}

// NewGenaiEmbeddingBackend builds a backend from cfg.
func NewGenaiEmbeddingBackend(ctx context.Context, cfg GenaiEmbeddingConfig) (*GenaiEmbeddingBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: genai: new client: %w", err)
	}
	dims := cfg.Dims
	if dims == 0 {
		dims = 768
	}
	return &GenaiEmbeddingBackend{client: client, model: cfg.Model, dims: dims}, nil
}

func (b *GenaiEmbeddingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}, Role: genai.RoleUser}}
	resp, err := b.client.Models.EmbedContent(ctx, b.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: genai: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("backend: genai: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

func (b *GenaiEmbeddingBackend) Dimensions() int { return b.dims }

var _ model.EmbeddingBackend = (*GenaiEmbeddingBackend)(nil)
