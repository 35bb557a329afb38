package values

import (
	"encoding/json"
	"fmt"
)

// Tree descriptors and template files encode the sum types in this package
// as JSON objects carrying a "type" discriminator. This file implements the
// marshal/unmarshal halves of that codec; the tree loader (internal/bark/tree)
// and the controller's template-file reader both depend on it.

type variableIDWire struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

// MarshalJSON implements json.Marshaler for VariableID.
func (v VariableID) MarshalJSON() ([]byte, error) {
	w := variableIDWire{Name: v.Name}
	switch v.Kind {
	case VarLoopValue:
		w.Kind = "loop_value"
	case VarAccumulator:
		w.Kind = "accumulator"
	case VarLastOutput:
		w.Kind = "last_output"
	case VarPreEmbed:
		w.Kind = "pre_embed"
	case VarNamed:
		w.Kind = "named"
	default:
		return nil, fmt.Errorf("values: unknown VariableKind %d", v.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler for VariableID.
func (v *VariableID) UnmarshalJSON(data []byte) error {
	var w variableIDWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "loop_value":
		*v = LoopValue
	case "accumulator":
		*v = Accumulator
	case "last_output":
		*v = LastOutput
	case "pre_embed":
		*v = PreEmbed
	case "named", "":
		*v = Named(w.Name)
	default:
		return fmt.Errorf("values: unknown variable kind %q", w.Kind)
	}
	return nil
}

type typed struct {
	Type string `json:"type"`
}

// MarshalTextValue encodes a TextValue to its wire form.
func MarshalTextValue(t TextValue) ([]byte, error) {
	switch v := t.(type) {
	case TextSimple:
		return json.Marshal(struct {
			typed
			Value string `json:"value"`
		}{typed{"simple"}, v.Value})
	case TextVariable:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"variable"}, v.ID})
	case TextDefault:
		return json.Marshal(struct {
			typed
			ID      VariableID `json:"id"`
			Default string     `json:"default"`
		}{typed{"default"}, v.ID, v.Default})
	case TextThoughts:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"thoughts"}, v.ID})
	case TextWithoutThoughts:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"without_thoughts"}, v.ID})
	case TextMulti:
		parts := make([]json.RawMessage, len(v.Parts))
		for i, p := range v.Parts {
			raw, err := MarshalTextValue(p)
			if err != nil {
				return nil, err
			}
			parts[i] = raw
		}
		return json.Marshal(struct {
			typed
			Parts []json.RawMessage `json:"parts"`
		}{typed{"multi"}, parts})
	case TextStructured:
		fields := make(map[string]json.RawMessage, len(v.Fields))
		for k, f := range v.Fields {
			raw, err := MarshalTextValue(f)
			if err != nil {
				return nil, err
			}
			fields[k] = raw
		}
		return json.Marshal(struct {
			typed
			Fields map[string]json.RawMessage `json:"fields"`
		}{typed{"structured"}, fields})
	default:
		return nil, fmt.Errorf("values: unknown TextValue %T", t)
	}
}

// UnmarshalTextValue decodes a TextValue from its wire form.
func UnmarshalTextValue(data []byte) (TextValue, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("text value: %w", err)
	}
	switch t.Type {
	case "simple", "":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextSimple{Value: w.Value}, nil
	case "variable":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextVariable{ID: w.ID}, nil
	case "default":
		var w struct {
			ID      VariableID `json:"id"`
			Default string     `json:"default"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextDefault{ID: w.ID, Default: w.Default}, nil
	case "thoughts":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextThoughts{ID: w.ID}, nil
	case "without_thoughts":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextWithoutThoughts{ID: w.ID}, nil
	case "multi":
		var w struct {
			Parts []json.RawMessage `json:"parts"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		parts := make([]TextValue, len(w.Parts))
		for i, raw := range w.Parts {
			p, err := UnmarshalTextValue(raw)
			if err != nil {
				return nil, err
			}
			parts[i] = p
		}
		return TextMulti{Parts: parts}, nil
	case "structured":
		var w struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		fields := make(map[string]TextValue, len(w.Fields))
		for k, raw := range w.Fields {
			f, err := UnmarshalTextValue(raw)
			if err != nil {
				return nil, err
			}
			fields[k] = f
		}
		return TextStructured{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("text value: unknown type %q", t.Type)
	}
}

// MarshalMessageValue encodes a MessageValue to its wire form.
func MarshalMessageValue(m MessageValue) ([]byte, error) {
	switch v := m.(type) {
	case MessageLiteral:
		text, err := MarshalTextValue(v.Text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			typed
			Role string          `json:"role"`
			Text json.RawMessage `json:"text"`
		}{typed{"literal"}, string(v.Role), text})
	case MessageSubPrompt:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"sub_prompt"}, v.ID})
	case MessageTemplate:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"template"}, v.ID})
	default:
		return nil, fmt.Errorf("values: unknown MessageValue %T", m)
	}
}

// UnmarshalMessageValue decodes a MessageValue from its wire form.
func UnmarshalMessageValue(data []byte) (MessageValue, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("message value: %w", err)
	}
	switch t.Type {
	case "literal", "":
		var w struct {
			Role string          `json:"role"`
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		text, err := UnmarshalTextValue(w.Text)
		if err != nil {
			return nil, err
		}
		return MessageLiteral{Role: Role(w.Role), Text: text}, nil
	case "sub_prompt":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MessageSubPrompt{ID: w.ID}, nil
	case "template":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MessageTemplate{ID: w.ID}, nil
	default:
		return nil, fmt.Errorf("message value: unknown type %q", t.Type)
	}
}

// UnmarshalMessageValues decodes a JSON array of MessageValue, the format
// used by ".json" template files and sub_prompt/template seed data.
func UnmarshalMessageValues(data []byte) ([]MessageValue, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]MessageValue, len(raws))
	for i, raw := range raws {
		m, err := UnmarshalMessageValue(raw)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// MarshalPromptValue encodes a PromptValue to its wire form.
func MarshalPromptValue(p PromptValue) ([]byte, error) {
	switch v := p.(type) {
	case PromptVariable:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"variable"}, v.ID})
	case PromptQuick:
		return json.Marshal(struct {
			typed
			Text string `json:"text"`
		}{typed{"quick"}, v.Text})
	case PromptTemplateRef:
		return json.Marshal(struct {
			typed
			ID VariableID `json:"id"`
		}{typed{"template"}, v.ID})
	case PromptTemplateFile:
		path, err := MarshalTextValue(v.Path)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			typed
			Path json.RawMessage `json:"path"`
		}{typed{"template_file"}, path})
	case PromptChat:
		msgs := make([]json.RawMessage, len(v.Messages))
		for i, m := range v.Messages {
			raw, err := MarshalMessageValue(m)
			if err != nil {
				return nil, err
			}
			msgs[i] = raw
		}
		return json.Marshal(struct {
			typed
			Messages []json.RawMessage `json:"messages"`
		}{typed{"chat"}, msgs})
	case PromptJoined:
		parts := make([]json.RawMessage, len(v.Parts))
		for i, pv := range v.Parts {
			raw, err := MarshalPromptValue(pv)
			if err != nil {
				return nil, err
			}
			parts[i] = raw
		}
		return json.Marshal(struct {
			typed
			Parts []json.RawMessage `json:"parts"`
		}{typed{"joined"}, parts})
	default:
		return nil, fmt.Errorf("values: unknown PromptValue %T", p)
	}
}

// UnmarshalPromptValue decodes a PromptValue from its wire form.
func UnmarshalPromptValue(data []byte) (PromptValue, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("prompt value: %w", err)
	}
	switch t.Type {
	case "variable", "":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return PromptVariable{ID: w.ID}, nil
	case "quick":
		var w struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return PromptQuick{Text: w.Text}, nil
	case "template":
		var w struct {
			ID VariableID `json:"id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return PromptTemplateRef{ID: w.ID}, nil
	case "template_file":
		var w struct {
			Path json.RawMessage `json:"path"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		path, err := UnmarshalTextValue(w.Path)
		if err != nil {
			return nil, err
		}
		return PromptTemplateFile{Path: path}, nil
	case "chat":
		var w struct {
			Messages []json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		msgs := make([]MessageValue, len(w.Messages))
		for i, raw := range w.Messages {
			m, err := UnmarshalMessageValue(raw)
			if err != nil {
				return nil, err
			}
			msgs[i] = m
		}
		return PromptChat{Messages: msgs}, nil
	case "joined":
		var w struct {
			Parts []json.RawMessage `json:"parts"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		parts := make([]PromptValue, len(w.Parts))
		for i, raw := range w.Parts {
			p, err := UnmarshalPromptValue(raw)
			if err != nil {
				return nil, err
			}
			parts[i] = p
		}
		return PromptJoined{Parts: parts}, nil
	default:
		return nil, fmt.Errorf("prompt value: unknown type %q", t.Type)
	}
}

// MarshalTextMatcher encodes a TextMatcher to its wire form.
func MarshalTextMatcher(m TextMatcher) ([]byte, error) {
	switch v := m.(type) {
	case MatchExact:
		return json.Marshal(struct {
			typed
			Value string `json:"value"`
		}{typed{"exact"}, v.Value})
	case MatchContains:
		return json.Marshal(struct {
			typed
			Value string `json:"value"`
		}{typed{"contains"}, v.Value})
	case MatchStartsWith:
		return json.Marshal(struct {
			typed
			Value string `json:"value"`
		}{typed{"starts_with"}, v.Value})
	case MatchEndsWith:
		return json.Marshal(struct {
			typed
			Value string `json:"value"`
		}{typed{"ends_with"}, v.Value})
	case MatchNot:
		inner, err := MarshalTextMatcher(v.Inner)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			typed
			Inner json.RawMessage `json:"inner"`
		}{typed{"not"}, inner})
	case MatchAny:
		return marshalMatcherList("any", v.Matchers)
	case MatchAll:
		return marshalMatcherList("all", v.Matchers)
	default:
		return nil, fmt.Errorf("values: unknown TextMatcher %T", m)
	}
}

func marshalMatcherList(kind string, matchers []TextMatcher) ([]byte, error) {
	raws := make([]json.RawMessage, len(matchers))
	for i, m := range matchers {
		raw, err := MarshalTextMatcher(m)
		if err != nil {
			return nil, err
		}
		raws[i] = raw
	}
	return json.Marshal(struct {
		typed
		Matchers []json.RawMessage `json:"matchers"`
	}{typed{kind}, raws})
}

// UnmarshalTextMatcher decodes a TextMatcher from its wire form.
func UnmarshalTextMatcher(data []byte) (TextMatcher, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("text matcher: %w", err)
	}
	switch t.Type {
	case "exact", "":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MatchExact{Value: w.Value}, nil
	case "contains":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MatchContains{Value: w.Value}, nil
	case "starts_with":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MatchStartsWith{Value: w.Value}, nil
	case "ends_with":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return MatchEndsWith{Value: w.Value}, nil
	case "not":
		var w struct {
			Inner json.RawMessage `json:"inner"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		inner, err := UnmarshalTextMatcher(w.Inner)
		if err != nil {
			return nil, err
		}
		return MatchNot{Inner: inner}, nil
	case "any", "all":
		var w struct {
			Matchers []json.RawMessage `json:"matchers"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		matchers := make([]TextMatcher, len(w.Matchers))
		for i, raw := range w.Matchers {
			mm, err := UnmarshalTextMatcher(raw)
			if err != nil {
				return nil, err
			}
			matchers[i] = mm
		}
		if t.Type == "any" {
			return MatchAny{Matchers: matchers}, nil
		}
		return MatchAll{Matchers: matchers}, nil
	default:
		return nil, fmt.Errorf("text matcher: unknown type %q", t.Type)
	}
}
