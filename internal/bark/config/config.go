// Package config loads the model-config document named by spec.md §6's
// optional model_config_path positional argument: the named backends,
// embedding backend, and vector databases a tree's model facade should be
// built from. Grounded on the teacher's internal/config package
// (config_llm.go's LLMConfig/LLMProviderConfig shape, loader.go's
// YAML-first decode path) but narrowed to the one facade this interpreter
// builds rather than a whole gateway's provider registry.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/barktree/bark/internal/bark/toolcaller"
)

// BackendConfig describes one named chat backend. Kind selects which
// concrete backend constructor in internal/bark/model/backend builds it.
type BackendConfig struct {
	Kind      string `yaml:"kind"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Region    string `yaml:"region"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// EmbeddingConfig describes the one embedding backend a facade may carry.
type EmbeddingConfig struct {
	Kind    string `yaml:"kind"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Dims    int    `yaml:"dims"`
}

// VectorDBConfig names a sqlite file a tree addresses by key from its Knn
// wrapper or PushSimpleEmbedding/PushValuedEmbedding/PullBestScored nodes.
type VectorDBConfig struct {
	Path string `yaml:"path"`
	Dims int    `yaml:"dims"`
}

// Config is the decoded model-config document.
type Config struct {
	Backends            map[string]BackendConfig   `yaml:"backends"`
	Embedding           *EmbeddingConfig           `yaml:"embedding"`
	VectorDBs           map[string]VectorDBConfig  `yaml:"vector_dbs"`
	Tools               []toolcaller.ServerConfig  `yaml:"tools"`
	StripThoughtsInChat bool                       `yaml:"strip_thoughts_in_chat"`
}

// Load reads and decodes the model config document at path. Both .yaml/
// .yml and .json extensions are accepted — gopkg.in/yaml.v3 decodes JSON
// documents too, since JSON is a syntactic subset of YAML, so no separate
// encoding/json branch is needed here (unlike the tree loader in
// internal/bark/tree, which needs exact JSON-array descriptor semantics
// and so does branch on extension).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must be a single document", path)
	}
	return &cfg, nil
}

// FromEnv builds a single-backend Config from the four environment
// variables spec.md §6 names, for the case where model_config_path is
// omitted entirely. Both the chat and the embedding backend always use the
// OpenAI-compatible kind (Ollama speaks that same wire protocol); OPENAI_URL,
// or failing that OLLAMA_HOST with "/v1" appended, sets their base URL, and
// with neither set they use the hosted OpenAI endpoint. OPENAI_API_KEY is
// passed through as the API key in every case.
func FromEnv() *Config {
	model := os.Getenv("MODEL_NAME")
	if model == "" {
		model = "gpt-4o-mini"
	}
	embedModel := os.Getenv("EMBEDDING_MODEL_NAME")
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	baseURL := os.Getenv("OPENAI_URL")
	if baseURL == "" {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			baseURL = host + "/v1"
		}
	}

	cfg := &Config{
		Backends: map[string]BackendConfig{
			"default": {
				Kind:    "openai",
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: baseURL,
				Model:   model,
			},
		},
		Embedding: &EmbeddingConfig{
			Kind:    "openai",
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: baseURL,
			Model:   embedModel,
			Dims:    1536,
		},
	}
	return cfg
}

// ResolveTreeRoot implements spec.md §6's derivation rule: when tree_root
// is omitted, it is the directory containing tree_path.
func ResolveTreeRoot(treePath, treeRoot string) string {
	if treeRoot != "" {
		return treeRoot
	}
	return filepath.Dir(treePath)
}
