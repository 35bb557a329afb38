package tree

import (
	"encoding/json"
	"fmt"

	"github.com/barktree/bark/internal/bark/node"
	"github.com/barktree/bark/internal/bark/values"
	"github.com/barktree/bark/internal/bark/wrapper"
)

// buildWrapper handles the four wrapper.* node types, called from Build's
// switch for the "interrogate", "knn", "repl", and "repeat_until" cases.
func buildWrapper(t string, data []byte, loader node.Loader) (node.Node, error) {
	switch t {
	case "interrogate":
		var w struct {
			Text  json.RawMessage `json:"text"`
			Child json.RawMessage `json:"child"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: interrogate: %w", err)
		}
		text, err := values.UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, fmt.Errorf("tree: interrogate: %w", err)
		}
		child, err := Build(w.Child, loader)
		if err != nil {
			return nil, fmt.Errorf("tree: interrogate: child: %w", err)
		}
		return &wrapper.Interrogate{Text: text, Child: child}, nil

	case "knn":
		var w struct {
			DB          string          `json:"db"`
			CompareText json.RawMessage `json:"compare_text"`
			K           int             `json:"k"`
			Child       json.RawMessage `json:"child"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: knn: %w", err)
		}
		compare, err := values.UnmarshalTextValue(w.CompareText)
		if err != nil {
			return nil, fmt.Errorf("tree: knn: %w", err)
		}
		child, err := Build(w.Child, loader)
		if err != nil {
			return nil, fmt.Errorf("tree: knn: child: %w", err)
		}
		return &wrapper.Knn{DB: w.DB, CompareText: compare, K: w.K, Child: child}, nil

	case "repl":
		var w struct {
			Prompt       json.RawMessage   `json:"prompt"`
			Alternatives []string          `json:"alternatives"`
			Children     []json.RawMessage `json:"children"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: repl: %w", err)
		}
		prompt, err := values.UnmarshalTextValue(w.Prompt)
		if err != nil {
			return nil, fmt.Errorf("tree: repl: %w", err)
		}
		if len(w.Children) != len(w.Alternatives) {
			return nil, fmt.Errorf("tree: repl: %d alternatives but %d children", len(w.Alternatives), len(w.Children))
		}
		children := make([]node.Node, len(w.Children))
		for i, raw := range w.Children {
			c, err := Build(raw, loader)
			if err != nil {
				return nil, fmt.Errorf("tree: repl: child %d: %w", i, err)
			}
			children[i] = c
		}
		return &wrapper.Repl{Prompt: prompt, Alternatives: w.Alternatives, Children: children}, nil

	case "repeat_until":
		var w struct {
			Condition json.RawMessage `json:"condition"`
			Action    json.RawMessage `json:"action"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tree: repeat_until: %w", err)
		}
		condition, err := Build(w.Condition, loader)
		if err != nil {
			return nil, fmt.Errorf("tree: repeat_until: condition: %w", err)
		}
		action, err := Build(w.Action, loader)
		if err != nil {
			return nil, fmt.Errorf("tree: repeat_until: action: %w", err)
		}
		return &wrapper.RepeatUntil{Condition: condition, Action: action}, nil

	default:
		return nil, fmt.Errorf("tree: unknown wrapper type %q", t)
	}
}
