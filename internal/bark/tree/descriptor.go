// Package tree decodes tree descriptor files — the on-disk JSON or YAML
// documents that name a root node and its children — into executable
// node.Node graphs. It is the one package allowed to import both node and
// values' wire codec, since node.Loader is injected specifically to avoid
// node depending on this package (see node/subtree.go).
//
// The wire format is a recursive tagged union keyed by a "type" field,
// following the same discriminator convention as values/json.go: each
// object is either a leaf node descriptor, a wrapper descriptor with an
// inline child or children, or one of the built-in composites (sequence,
// selector, parallel) that spec.md §6 attributes to "the underlying
// behavior-tree library" — see node/composite.go and DESIGN.md for why
// those are hand-rolled instead of imported.
package tree

import (
	"encoding/json"
	"fmt"

	"github.com/barktree/bark/internal/bark/node"
	"github.com/barktree/bark/internal/bark/values"
)

type typed struct {
	Type string `json:"type"`
}

// Build decodes a single node descriptor (and, recursively, everything it
// references) into an executable node.Node. loader is threaded into every
// subtree_ref descriptor encountered.
func Build(data []byte, loader node.Loader) (node.Node, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}

	switch t.Type {
	// Composites
	case "sequence":
		return buildChildren(data, loader, func(cs []node.Node) node.Node { return &node.Sequence{Children: cs} })
	case "selector":
		return buildChildren(data, loader, func(cs []node.Node) node.Node { return &node.Selector{Children: cs} })
	case "parallel":
		return buildChildren(data, loader, func(cs []node.Node) node.Node { return &node.Parallel{Children: cs} })

	// Wrappers
	case "interrogate", "knn", "repl", "repeat_until":
		return buildWrapper(t.Type, data, loader)

	// Variable/prompt mutation
	case "set_text":
		var w struct {
			Target values.VariableID `json:"target"`
			Value  json.RawMessage   `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: set_text: %w", err)
		}
		val, err := values.UnmarshalTextValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("tree: set_text: %w", err)
		}
		return &node.SetText{Target: w.Target, Value: val}, nil
	case "set_template":
		var w struct {
			Target values.VariableID `json:"target"`
			Value  json.RawMessage   `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: set_template: %w", err)
		}
		val, err := values.UnmarshalTextValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("tree: set_template: %w", err)
		}
		return &node.SetTemplate{Target: w.Target, Value: val}, nil
	case "start_prompt":
		return buildPromptMutation(data, "start_prompt", func(target values.VariableID, v values.PromptValue) node.Node {
			return &node.StartPrompt{Target: target, Value: v}
		})
	case "extend_prompt":
		return buildPromptMutation(data, "extend_prompt", func(target values.VariableID, v values.PromptValue) node.Node {
			return &node.ExtendPrompt{Target: target, Value: v}
		})
	case "replace_system_prompt":
		return buildPromptMutation(data, "replace_system_prompt", func(target values.VariableID, v values.PromptValue) node.Node {
			return &node.ReplaceSystemPrompt{Target: target, Value: v}
		})
	case "unescape":
		var w struct {
			Target values.VariableID `json:"target"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: unescape: %w", err)
		}
		return &node.Unescape{Target: w.Target}, nil

	// Chat/agent
	case "prompt":
		var w struct {
			Backend string            `json:"backend"`
			Slot    values.VariableID `json:"slot"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: prompt: %w", err)
		}
		return &node.Prompt{Backend: w.Backend, Slot: w.Slot}, nil
	case "match_response":
		var w struct {
			Backend string            `json:"backend"`
			Slot    values.VariableID `json:"slot"`
			Matcher json.RawMessage   `json:"matcher"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: match_response: %w", err)
		}
		matcher, err := values.UnmarshalTextMatcher(w.Matcher)
		if err != nil {
			return nil, fmt.Errorf("tree: match_response: %w", err)
		}
		return &node.MatchResponse{Backend: w.Backend, Slot: w.Slot, Matcher: matcher}, nil
	case "agent":
		var w struct {
			Backend    string            `json:"backend"`
			Slot       values.VariableID `json:"slot"`
			ToolFilter json.RawMessage   `json:"tool_filter"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: agent: %w", err)
		}
		var filter values.TextValue
		if len(w.ToolFilter) > 0 {
			f, err := values.UnmarshalTextValue(w.ToolFilter)
			if err != nil {
				return nil, fmt.Errorf("tree: agent: %w", err)
			}
			filter = f
		} else {
			filter = values.TextSimple{}
		}
		return &node.Agent{Backend: w.Backend, Slot: w.Slot, ToolFilter: filter}, nil
	case "interactive_prompt":
		var w struct {
			Backend string            `json:"backend"`
			Slot    values.VariableID `json:"slot"`
			Choices int               `json:"choices"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: interactive_prompt: %w", err)
		}
		return &node.InteractivePrompt{Backend: w.Backend, Slot: w.Slot, Choices: w.Choices}, nil

	// Effect-free I/O
	case "print_line":
		var w struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: print_line: %w", err)
		}
		val, err := values.UnmarshalTextValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("tree: print_line: %w", err)
		}
		return &node.PrintLine{Value: val}, nil
	case "ask_for_input":
		var w struct {
			Prompt json.RawMessage   `json:"prompt"`
			Target values.VariableID `json:"target"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: ask_for_input: %w", err)
		}
		val, err := values.UnmarshalTextValue(w.Prompt)
		if err != nil {
			return nil, fmt.Errorf("tree: ask_for_input: %w", err)
		}
		return &node.AskForInput{Prompt: val, Target: w.Target}, nil
	case "read_stdio":
		var w struct {
			SingleLine bool              `json:"single_line"`
			Target     values.VariableID `json:"target"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: read_stdio: %w", err)
		}
		return &node.ReadStdio{SingleLine: w.SingleLine, Target: w.Target}, nil
	case "save_file":
		return buildPathValue(data, "save_file", func(path, value values.TextValue) node.Node {
			return &node.SaveFile{Path: path, Value: value}
		})
	case "load_file":
		return buildPathTarget(data, "load_file", func(path values.TextValue, target values.VariableID) node.Node {
			return &node.LoadFile{Path: path, Target: target}
		})
	case "save_indexed_file":
		return buildPathValue(data, "save_indexed_file", func(path, value values.TextValue) node.Node {
			return &node.SaveIndexedFile{Path: path, Value: value}
		})
	case "load_indexed_file":
		return buildPathTarget(data, "load_indexed_file", func(path values.TextValue, target values.VariableID) node.Node {
			return &node.LoadIndexedFile{Path: path, Target: target}
		})
	case "dump_state":
		var w struct {
			Path json.RawMessage `json:"path"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: dump_state: %w", err)
		}
		path, err := values.UnmarshalTextValue(w.Path)
		if err != nil {
			return nil, fmt.Errorf("tree: dump_state: %w", err)
		}
		return &node.DumpState{Path: path}, nil

	// Embedding/vector DB
	case "get_embedding":
		var w struct {
			Text   json.RawMessage   `json:"text"`
			Target values.VariableID `json:"target"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: get_embedding: %w", err)
		}
		text, err := values.UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, fmt.Errorf("tree: get_embedding: %w", err)
		}
		return &node.GetEmbedding{Text: text, Target: w.Target}, nil
	case "push_simple_embedding":
		var w struct {
			DB   string          `json:"db"`
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: push_simple_embedding: %w", err)
		}
		text, err := values.UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, fmt.Errorf("tree: push_simple_embedding: %w", err)
		}
		return &node.PushSimpleEmbedding{DB: w.DB, Text: text}, nil
	case "push_valued_embedding":
		var w struct {
			DB   string                     `json:"db"`
			Text json.RawMessage            `json:"text"`
			KVs  map[string]json.RawMessage `json:"kvs"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: push_valued_embedding: %w", err)
		}
		text, err := values.UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, fmt.Errorf("tree: push_valued_embedding: %w", err)
		}
		kvs := make(map[string]values.TextValue, len(w.KVs))
		for k, raw := range w.KVs {
			v, err := values.UnmarshalTextValue(raw)
			if err != nil {
				return nil, fmt.Errorf("tree: push_valued_embedding: kv %q: %w", k, err)
			}
			kvs[k] = v
		}
		return &node.PushValuedEmbedding{DB: w.DB, Text: text, KVs: kvs}, nil
	case "pull_best_scored":
		var w struct {
			DB     string            `json:"db"`
			Text   json.RawMessage   `json:"text"`
			Target values.VariableID `json:"target"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: pull_best_scored: %w", err)
		}
		text, err := values.UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, fmt.Errorf("tree: pull_best_scored: %w", err)
		}
		return &node.PullBestScored{DB: w.DB, Text: text, Target: w.Target}, nil

	// Subtree
	case "subtree_ref":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: subtree_ref: %w", err)
		}
		return &node.SubtreeRef{Name: w.Name, Loader: loader}, nil

	default:
		return nil, fmt.Errorf("tree: unknown node type %q", t.Type)
	}
}

func buildChildren(data []byte, loader node.Loader, newNode func([]node.Node) node.Node) (node.Node, error) {
	var w struct {
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	children := make([]node.Node, len(w.Children))
	for i, raw := range w.Children {
		c, err := Build(raw, loader)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	return newNode(children), nil
}

func buildPromptMutation(data []byte, kind string, newNode func(values.VariableID, values.PromptValue) node.Node) (node.Node, error) {
	var w struct {
		Target values.VariableID `json:"target"`
		Value  json.RawMessage   `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	val, err := values.UnmarshalPromptValue(w.Value)
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	return newNode(w.Target, val), nil
}

func buildPathValue(data []byte, kind string, newNode func(path, value values.TextValue) node.Node) (node.Node, error) {
	var w struct {
		Path  json.RawMessage `json:"path"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	path, err := values.UnmarshalTextValue(w.Path)
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	value, err := values.UnmarshalTextValue(w.Value)
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	return newNode(path, value), nil
}

func buildPathTarget(data []byte, kind string, newNode func(path values.TextValue, target values.VariableID) node.Node) (node.Node, error) {
	var w struct {
		Path   json.RawMessage   `json:"path"`
		Target values.VariableID `json:"target"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	path, err := values.UnmarshalTextValue(w.Path)
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", kind, err)
	}
	return newNode(path, w.Target), nil
}
