package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/barktree/bark/internal/bark/node"
)

// FileLoader implements node.Loader by reading a tree descriptor file from
// disk, parsing it according to its extension (".json" decodes as JSON
// directly; ".yaml"/".yml" decodes as YAML and is normalized to JSON so
// Build only needs one code path — the json.RawMessage/json.Unmarshal
// machinery throughout descriptor.go and wrappers.go), and building the
// resulting node.Node graph with itself as the Loader for any nested
// subtree_ref. A name passed without an extension is tried as ".json" then
// ".yaml" then ".yml", matching the CLI surface's "tree_path" argument,
// which spec.md §6 allows to omit the extension implicitly via dirname
// splitting.
type FileLoader struct{}

// Load implements node.Loader.
func (FileLoader) Load(path string) (node.Node, error) {
	resolved, data, err := readTreeFile(path)
	if err != nil {
		return nil, err
	}

	jsonData := data
	if isYAMLPath(resolved) {
		jsonData, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("tree: %s: %w", resolved, err)
		}
	}

	n, err := Build(jsonData, FileLoader{})
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", resolved, err)
	}
	return n, nil
}

func readTreeFile(path string) (resolved string, data []byte, err error) {
	if ext := filepath.Ext(path); ext != "" {
		data, err = os.ReadFile(path)
		return path, data, err
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		candidate := path + ext
		data, err = os.ReadFile(candidate)
		if err == nil {
			return candidate, data, nil
		}
	}
	return path, nil, fmt.Errorf("tree: no .json, .yaml, or .yml file found for %q", path)
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON decodes a YAML document into generic Go values and re-encodes
// them as JSON, since encoding/json can't read YAML directly but every
// descriptor's Build logic is already written against json.RawMessage.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(v))
}

// normalizeYAML recursively converts the map[string]any/map[any]any and
// []any shapes yaml.v3 produces into ones encoding/json can marshal:
// map[string]any throughout, since YAML keys decode as "any" even when
// they're always strings in practice here.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

var _ node.Loader = FileLoader{}
